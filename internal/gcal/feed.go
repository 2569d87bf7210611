package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"yearcal/internal/config"
	appLog "yearcal/internal/log"
	"yearcal/internal/model"
)

// open builds the client of one configured calendar. A calendar without
// credentials is only accepted when it points at an explicit endpoint, such
// as a local emulator.
func open(ctx context.Context, c config.GoogleConfig) (*Client, error) {
	var httpClient *http.Client
	switch {
	case c.Credentials != "":
		hc, err := HTTPClient(ctx, c.Credentials, c.Token)
		if err != nil {
			return nil, err
		}
		httpClient = hc
	case c.Endpoint != "":
		httpClient = http.DefaultClient
	default:
		return nil, errors.New("gcal: credentials_file is required")
	}
	return NewClient(ctx, httpClient, c.Endpoint)
}

// LoadEvents reads every calendar in calendars. A failing calendar is
// logged and reported in the joined error; the others are still returned.
func LoadEvents(ctx context.Context, calendars []config.GoogleConfig, loc *time.Location, from, to time.Time) ([]model.CalendarEvent, error) {
	var (
		out  []model.CalendarEvent
		errs []error
	)
	for _, c := range calendars {
		id := c.SourceID()
		client, err := open(ctx, c)
		if err != nil {
			errs = append(errs, fmt.Errorf("google %s: %w", id, err))
			continue
		}
		events, err := client.ListEvents(ctx, Source{ID: id, CalendarID: c.Calendar(), Color: c.Color}, from, to, loc)
		if err != nil {
			appLog.Error("google calendar load failed", err, "id", id)
			errs = append(errs, err)
		}
		appLog.Debug("google calendar loaded", "id", id, "events", len(events))
		out = append(out, events...)
	}
	return out, errors.Join(errs...)
}
