// Package gcal reads events from Google Calendar through the Calendar API v3.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"yearcal/internal/model"
)

const dateLayout = "2006-01-02"

// Source is one Google calendar.
type Source struct {
	ID         string
	CalendarID string
	Color      string
}

// Client wraps the Google Calendar API service.
type Client struct {
	service *calendar.Service
}

// NewClient creates a Calendar API client on top of httpClient, which must
// already carry credentials. An optional endpoint overrides the API base URL.
func NewClient(ctx context.Context, httpClient *http.Client, endpoint ...string) (*Client, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if len(endpoint) > 0 && endpoint[0] != "" {
		opts = append(opts, option.WithEndpoint(endpoint[0]))
	}

	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcal: unable to create Calendar service: %w", err)
	}
	return &Client{service: srv}, nil
}

// ListEvents returns the events of src that intersect [from, to], with
// recurring events expanded by the API. Cancelled events are skipped.
// All-day events end on the last instant of their final day in loc.
func (c *Client) ListEvents(ctx context.Context, src Source, from, to time.Time, loc *time.Location) ([]model.CalendarEvent, error) {
	if loc == nil {
		loc = time.Local
	}
	calendarID := src.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	call := c.service.Events.List(calendarID).
		Context(ctx).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339))

	var (
		out       []model.CalendarEvent
		errs      []error
		pageToken string
	)
	for {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			return out, fmt.Errorf("gcal %s: unable to retrieve events: %w", src.ID, err)
		}
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			ev, err := toEvent(src, item, loc)
			if err != nil {
				errs = append(errs, fmt.Errorf("gcal %s: event %s: %w", src.ID, item.Id, err))
				continue
			}
			out = append(out, ev)
		}
		if pageToken = page.NextPageToken; pageToken == "" {
			break
		}
	}
	return out, errors.Join(errs...)
}

func toEvent(src Source, item *calendar.Event, loc *time.Location) (model.CalendarEvent, error) {
	if item.Start == nil || item.End == nil {
		return model.CalendarEvent{}, errors.New("missing start or end")
	}
	ev := model.CalendarEvent{
		ID:       src.ID + "/" + item.Id,
		SourceID: src.ID,
		Title:    item.Summary,
		Color:    model.ParseColor(src.Color),
	}
	if item.EventType != "" && item.EventType != "default" {
		ev.Kind = item.EventType
	}

	if item.Start.Date != "" {
		start, err := time.ParseInLocation(dateLayout, item.Start.Date, loc)
		if err != nil {
			return model.CalendarEvent{}, fmt.Errorf("start: %w", err)
		}
		// The API's end date is exclusive.
		end := start.AddDate(0, 0, 1)
		if item.End.Date != "" {
			if end, err = time.ParseInLocation(dateLayout, item.End.Date, loc); err != nil {
				return model.CalendarEvent{}, fmt.Errorf("end: %w", err)
			}
		}
		ev.AllDay = true
		ev.Start = start
		ev.End = end
		if end.After(start) {
			ev.End = end.Add(-time.Nanosecond)
		}
		return ev, nil
	}

	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("end: %w", err)
	}
	ev.Start = start.In(loc)
	// Same inclusive-end convention as the ICS feeds.
	ev.End = end.In(loc)
	if ev.End.After(ev.Start) {
		ev.End = ev.End.Add(-time.Nanosecond)
	}
	return ev, nil
}
