package ics

import (
	"context"
	"errors"
	"time"

	appLog "yearcal/internal/log"
	"yearcal/internal/model"
)

// LoadEvents fetches, parses and expands sources into calendar events
// within [from, to]. Sources that fail at any stage are skipped; their
// errors are joined into the returned error alongside whatever events the
// other sources produced.
func LoadEvents(ctx context.Context, f *Fetcher, sources []Source, loc *time.Location, from, to time.Time) ([]model.CalendarEvent, error) {
	results, errs := f.FetchAll(ctx, sources)

	var out []model.CalendarEvent
	for _, res := range results {
		parsed, err := ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("ics parse failed", err, "id", res.Source.ID, "url", redactURL(res.Source.URL))
			errs = append(errs, err)
			continue
		}
		expanded, err := ExpandEvents(parsed, ExpandConfig{
			DisplayLocation: loc,
			RangeStart:      from,
			RangeEnd:        to,
			DefaultColor:    res.Source.Color,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, expanded.Events...)
	}
	return out, errors.Join(errs...)
}
