package commands

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appLog "yearcal/internal/log"
	"yearcal/internal/web"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the year view and JSON API, refreshing events on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := g.load()
			if err != nil {
				return err
			}
			if listen != "" {
				rt.cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// A failed first load is not fatal: the schedule retries.
			if _, err := rt.refresher.Refresh(ctx); err != nil {
				appLog.Warn("initial refresh failed", "cause", err.Error())
			}
			if err := rt.refresher.Start(ctx, rt.cfg.RefreshCron); err != nil {
				return err
			}
			defer rt.refresher.Stop()

			srv, err := web.NewServer(rt.cfg, rt.loc, rt.refresher)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", rt.cfg.Listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", rt.cfg.Listen, err)
			}
			return serveUntilDone(ctx, srv, ln)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	return cmd
}

func serveUntilDone(ctx context.Context, srv *web.Server, ln net.Listener) error {
	err := srv.Serve(ctx, ln)
	appLog.Info("http server stopped")
	return err
}
