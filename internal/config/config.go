package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "UTC"
	defaultRefreshCron = "*/15 * * * *"
	defaultCacheDir    = "/var/lib/yearcal/ics-cache"
	defaultLogLevel    = "info"
	defaultMaxLanes    = 3
	defaultLaneHeight  = 14
	defaultLaneGap     = 2
	defaultRowHeight   = 52
	defaultLayoutCache = 16
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is an http(s) endpoint or a local file path.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for event IDs and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Color is applied to events of this feed that carry no COLOR property.
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

// SourceID returns ID, falling back to Name and then URL.
func (c ICSConfig) SourceID() string {
	switch {
	case c.ID != "":
		return c.ID
	case c.Name != "":
		return c.Name
	default:
		return c.URL
	}
}

// GoogleConfig describes a Google Calendar read through the Calendar API.
type GoogleConfig struct {
	// ID is an internal identifier used for event IDs and logging.
	ID string `yaml:"id" json:"id"`
	// CalendarID is the Google calendar to read; empty means "primary".
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`
	// Credentials is the OAuth client secret JSON downloaded from Google.
	Credentials string `yaml:"credentials_file" json:"credentials_file"`
	// Token holds the authorized OAuth token, written by "yearcal google-auth".
	Token string `yaml:"token_file" json:"token_file"`
	// Color is applied to every event of this calendar.
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
	// Endpoint overrides the API base URL.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// SourceID returns ID, falling back to "google/<calendar>".
func (c GoogleConfig) SourceID() string {
	if c.ID != "" {
		return c.ID
	}
	return "google/" + c.Calendar()
}

// Calendar returns CalendarID or "primary".
func (c GoogleConfig) Calendar() string {
	if c.CalendarID == "" {
		return "primary"
	}
	return c.CalendarID
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone every event is laid out in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Year is the calendar year shown by default. Zero means the current year.
	Year int `yaml:"year" json:"year"`

	// MaxLanes is the number of event bars a week shows before "+N more".
	MaxLanes int `yaml:"max_lanes" json:"max_lanes"`

	// LaneHeight, LaneGap and RowHeight are pixel sizes used when the HTTP
	// API and the HTML view position bars.
	LaneHeight int `yaml:"lane_height" json:"lane_height"`
	LaneGap    int `yaml:"lane_gap" json:"lane_gap"`
	RowHeight  int `yaml:"row_height" json:"row_height"`

	// RefreshCron is a cron spec (e.g. "*/15 * * * *") for reloading sources.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir stores ICS bodies and their HTTP validators.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// LayoutCacheSize bounds the number of memoized layouts.
	LayoutCacheSize int `yaml:"layout_cache_size" json:"layout_cache_size"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// Google lists Google Calendar sources.
	Google []GoogleConfig `yaml:"google,omitempty" json:"google,omitempty"`

	// EventFiles are YAML or JSON files holding plain event lists.
	EventFiles []string `yaml:"event_files" json:"event_files"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          defaultListen,
		Timezone:        defaultTimezone,
		MaxLanes:        defaultMaxLanes,
		LaneHeight:      defaultLaneHeight,
		LaneGap:         defaultLaneGap,
		RowHeight:       defaultRowHeight,
		RefreshCron:     defaultRefreshCron,
		CacheDir:        defaultCacheDir,
		LogLevel:        defaultLogLevel,
		LayoutCacheSize: defaultLayoutCache,
		ICS:             []ICSConfig{},
		EventFiles:      []string{},
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Year < 0 {
		c.Year = 0
	}
	if c.MaxLanes <= 0 {
		c.MaxLanes = defaultMaxLanes
	}
	if c.LaneHeight <= 0 {
		c.LaneHeight = defaultLaneHeight
	}
	if c.LaneGap < 0 {
		c.LaneGap = defaultLaneGap
	}
	if c.RowHeight <= 0 {
		c.RowHeight = defaultRowHeight
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LayoutCacheSize <= 0 {
		c.LayoutCacheSize = defaultLayoutCache
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.EventFiles == nil {
		c.EventFiles = []string{}
	}
}

// Location resolves Timezone. An unknown zone is an error so that a typo
// does not silently shift every event.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// EffectiveYear returns Year, or the year of now in loc when Year is zero.
func (c *Config) EffectiveYear(now time.Time, loc *time.Location) int {
	if c.Year > 0 {
		return c.Year
	}
	return now.In(loc).Year()
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there with
//     0600 permissions and returned.
//   - Otherwise the YAML is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Caller decides whether running on defaults is acceptable.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory with 0700 if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".yearcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
