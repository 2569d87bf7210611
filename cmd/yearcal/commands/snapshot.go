package commands

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/spf13/cobra"

	"yearcal/internal/capture"
	appLog "yearcal/internal/log"
	"yearcal/internal/web"
)

type snapshotOptions struct {
	out      string
	year     int
	maxLanes int
	width    int
	height   int
}

func newSnapshotCmd(g *globalOptions) *cobra.Command {
	opts := &snapshotOptions{}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Render the year view to a PNG with headless Chromium",
		Long: `snapshot loads events once, serves the year view on a loopback port
for the duration of the capture, and writes a full-page PNG.`,
		Example: "  yearcal snapshot --out /tmp/2024.png --year 2024",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := g.load()
			if err != nil {
				return err
			}
			if opts.year > 0 {
				rt.cfg.Year = opts.year
			}
			if _, err := rt.refresher.Refresh(cmd.Context()); err != nil {
				return fmt.Errorf("load events: %w", err)
			}

			srv, err := web.NewServer(rt.cfg, rt.loc, rt.refresher)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				return fmt.Errorf("listen loopback: %w", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- srv.Serve(ctx, ln) }()

			base := url.URL{Scheme: "http", Host: ln.Addr().String()}
			if ba := rt.cfg.BasicAuth; ba != nil && ba.Username != "" {
				base.User = url.UserPassword(ba.Username, ba.Password)
			}

			capErr := capture.YearPNG(ctx, capture.Options{
				BaseURL:    base.String(),
				Year:       rt.cfg.Year,
				MaxLanes:   opts.maxLanes,
				OutputPath: opts.out,
				Width:      opts.width,
				Height:     opts.height,
			})
			cancel()
			if err := <-done; err != nil {
				appLog.Warn("loopback server stopped with error", "cause", err.Error())
			}
			if capErr != nil {
				return capErr
			}
			appLog.Info("snapshot written", "path", opts.out)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.out, "out", "o", "yearcal.png", "Output PNG path")
	f.IntVar(&opts.year, "year", 0, "Year to render (default: config year, else current year)")
	f.IntVar(&opts.maxLanes, "max-lanes", 0, "Visible lanes per week (default: config max_lanes)")
	f.IntVar(&opts.width, "width", capture.DefaultWidth, "Viewport width in pixels")
	f.IntVar(&opts.height, "height", capture.DefaultHeight, "Viewport height in pixels")
	return cmd
}
