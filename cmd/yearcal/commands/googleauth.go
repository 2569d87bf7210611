package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"yearcal/internal/config"
	"yearcal/internal/gcal"
)

func newGoogleAuthCmd(g *globalOptions) *cobra.Command {
	var (
		sourceID string
		listen   string
	)

	cmd := &cobra.Command{
		Use:   "google-auth",
		Short: "Authorize read access to a configured Google calendar",
		Long: `google-auth runs the OAuth consent flow for a Google calendar from the
config file and stores the token at its token_file. Open the printed URL in
a browser that can reach the callback address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := g.load()
			if err != nil {
				return err
			}
			gc, err := findGoogle(rt.cfg.Google, sourceID)
			if err != nil {
				return err
			}
			if gc.Credentials == "" || gc.Token == "" {
				return fmt.Errorf("google %s: credentials_file and token_file are required", gc.SourceID())
			}

			oauthCfg, err := gcal.LoadConfig(gc.Credentials)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tok, err := gcal.TokenFromWeb(cmd.Context(), oauthCfg, listen, func(authURL string) {
				headerColor.Fprintln(out, "Open this URL to authorize yearcal:")
				fmt.Fprintln(out, authURL)
			})
			if err != nil {
				return err
			}
			if err := gcal.SaveToken(gc.Token, tok); err != nil {
				return err
			}
			fmt.Fprintf(out, "Token saved to %s\n", gc.Token)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&sourceID, "source", "", "ID of the Google source to authorize (default: the only one)")
	f.StringVar(&listen, "listen", "127.0.0.1:8085", "Callback listen address")
	return cmd
}

func findGoogle(sources []config.GoogleConfig, id string) (config.GoogleConfig, error) {
	if len(sources) == 0 {
		return config.GoogleConfig{}, errors.New("no google sources configured")
	}
	if id == "" {
		if len(sources) > 1 {
			return config.GoogleConfig{}, errors.New("several google sources configured; pick one with --source")
		}
		return sources[0], nil
	}
	for _, s := range sources {
		if s.SourceID() == id {
			return s, nil
		}
	}
	return config.GoogleConfig{}, fmt.Errorf("google source %q not found", id)
}
