package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	appLog "yearcal/internal/log"
)

const (
	tokenFilePermMode = 0o600
	callbackPath      = "/oauth2callback"
)

// LoadConfig reads an OAuth client secret file. Only read access to
// calendars is requested.
func LoadConfig(credentialsPath string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("gcal: unable to read credentials file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("gcal: unable to parse client secret file: %w", err)
	}
	return cfg, nil
}

// LoadToken loads an OAuth token from tokenPath.
func LoadToken(tokenPath string) (*oauth2.Token, error) {
	f, err := os.Open(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("gcal: unable to open token file: %w", err)
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("gcal: unable to decode token: %w", err)
	}
	return tok, nil
}

// SaveToken writes tok to tokenPath, readable by the owner only.
func SaveToken(tokenPath string, tok *oauth2.Token) error {
	f, err := os.OpenFile(tokenPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, tokenFilePermMode)
	if err != nil {
		return fmt.Errorf("gcal: unable to create token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("gcal: unable to encode token: %w", err)
	}
	return nil
}

// HTTPClient returns a client authorized with a previously saved token.
// The daemon never starts an interactive flow; run TokenFromWeb once first.
func HTTPClient(ctx context.Context, credentialsPath, tokenPath string) (*http.Client, error) {
	cfg, err := LoadConfig(credentialsPath)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(tokenPath)
	if err != nil {
		return nil, err
	}
	return cfg.Client(ctx, tok), nil
}

// TokenFromWeb runs the browser authorization flow. It listens on
// listenAddr for the OAuth callback, hands the consent URL to show, and
// exchanges the returned code for a token.
func TokenFromWeb(ctx context.Context, cfg *oauth2.Config, listenAddr string, show func(authURL string)) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("gcal: callback listener: %w", err)
	}
	cfg.RedirectURL = "http://" + ln.Addr().String() + callbackPath

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			select {
			case errCh <- errors.New("gcal: no authorization code received"):
			default:
			}
			http.Error(w, "No authorization code received", http.StatusBadRequest)
			return
		}
		select {
		case codeCh <- code:
		default:
		}
		fmt.Fprint(w, "Authorization successful. You can close this window.")
	})
	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errCh <- fmt.Errorf("gcal: callback server: %w", err):
			default:
			}
		}
	}()
	defer server.Close()

	authURL := cfg.AuthCodeURL("yearcal", oauth2.AccessTypeOffline)
	appLog.Info("waiting for Google authorization", "callback", cfg.RedirectURL)
	show(authURL)

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("gcal: unable to exchange authorization code: %w", err)
	}
	return tok, nil
}
