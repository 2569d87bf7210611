package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"yearcal/internal/layout"
	"yearcal/internal/web"
)

type layoutOptions struct {
	year     int
	maxLanes int
	asJSON   bool
	all      bool
}

func newLayoutCmd(g *globalOptions) *cobra.Command {
	opts := &layoutOptions{}

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Load events once and print the lane layout of a year",
		Example: `  yearcal layout --year 2024
  yearcal layout --events shifts.yaml --max-lanes 5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := g.load()
			if err != nil {
				return err
			}
			if opts.year > 0 {
				rt.cfg.Year = opts.year
			}
			maxLanes := rt.cfg.MaxLanes
			if opts.maxLanes > 0 {
				maxLanes = opts.maxLanes
			}

			snap, err := rt.refresher.Refresh(cmd.Context())
			if err != nil {
				return fmt.Errorf("load events: %w", err)
			}
			if snap.Err != nil {
				warnColor.Fprintf(cmd.ErrOrStderr(), "some sources failed: %v\n", snap.Err)
			}

			year := rt.cfg.EffectiveYear(time.Now(), rt.loc)
			res := layout.Compute(snap.Events, year, layout.Options{MaxLanes: maxLanes, Location: rt.loc})

			out := cmd.OutOrStdout()
			if opts.asJSON {
				geo := layout.Geometry{LaneHeight: rt.cfg.LaneHeight, LaneGap: rt.cfg.LaneGap}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(web.NewLayoutResponse(res, rt.loc, geo, rt.cfg.RowHeight, snap.Generation))
			}
			printLayout(out, res, rt.loc.String(), opts.all)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.year, "year", 0, "Year to lay out (default: config year, else current year)")
	f.IntVar(&opts.maxLanes, "max-lanes", 0, "Visible lanes per week (default: config max_lanes)")
	f.BoolVar(&opts.asJSON, "json", false, "Print the layout as JSON")
	f.BoolVar(&opts.all, "all", false, "Also list weeks without events")
	return cmd
}
