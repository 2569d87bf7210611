package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"yearcal/internal/config"
	"yearcal/internal/ics"
	appLog "yearcal/internal/log"
	"yearcal/internal/refresh"
)

const defaultConfigPath = "/etc/yearcal/config.yaml"

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
	eventFiles []string
	icsURLs    []string
}

// NewRootCmd builds the command tree. A fresh tree per call keeps tests
// independent of each other.
func NewRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:     "yearcal",
		Version: version,
		Short:   "Year calendar with collision-free event bars",
		Long: `yearcal lays out calendar events on a Monday-first year grid, giving
every event bar a lane per week so that no two bars overlap.

Events come from ICS feeds, Google calendars and YAML/JSON event files
named in the config file or on the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	pf.StringSliceVar(&opts.eventFiles, "events", nil, "Extra YAML/JSON event file (repeatable)")
	pf.StringSliceVar(&opts.icsURLs, "ics", nil, "Extra ICS URL or file (repeatable)")

	root.AddCommand(
		newLayoutCmd(opts),
		newServeCmd(opts),
		newSnapshotCmd(opts),
		newGoogleAuthCmd(opts),
	)
	return root
}

// runtime bundles what every command needs after config loading.
type runtime struct {
	cfg       *config.Config
	loc       *time.Location
	refresher *refresh.Refresher
}

func (o *globalOptions) load() (*runtime, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		if cfg == nil {
			return nil, err
		}
		// First run without write access: keep going on defaults.
		appLog.Warn("could not write default config; using defaults", "config_path", o.configPath, "cause", err.Error())
	}

	levelName := cfg.LogLevel
	if o.logLevel != "" {
		levelName = o.logLevel
	}
	level, ok := appLog.ParseLevel(levelName)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", levelName)
	}
	appLog.SetLevel(level)

	cfg.EventFiles = append(cfg.EventFiles, o.eventFiles...)
	for i, u := range o.icsURLs {
		cfg.ICS = append(cfg.ICS, config.ICSConfig{ID: fmt.Sprintf("cli-%d", i+1), URL: u})
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	appLog.Info("effective config",
		"config_path", o.configPath,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"year", cfg.Year,
		"max_lanes", cfg.MaxLanes,
		"refresh", cfg.RefreshCron,
		"ics_count", len(cfg.ICS),
		"google_count", len(cfg.Google),
		"event_files", len(cfg.EventFiles),
	)

	loader := refresh.ConfigLoader(cfg, loc, ics.NewFetcher(cfg.CacheDir, nil), nil)
	return &runtime{cfg: cfg, loc: loc, refresher: refresh.New(loader)}, nil
}
