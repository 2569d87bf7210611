package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yearcal/internal/layout"
	"yearcal/internal/model"
)

func calendar(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//yearcal//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR")
	return []byte(strings.Join(all, "\r\n") + "\r\n")
}

var fixture = calendar(
	"BEGIN:VEVENT",
	"UID:meeting-1",
	"DTSTAMP:20240101T000000Z",
	"DTSTART:20240105T090000Z",
	"DTEND:20240105T100000Z",
	"SUMMARY:Standup",
	"COLOR:red",
	"CATEGORIES:meeting",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:vacation-1",
	"DTSTAMP:20240101T000000Z",
	"DTSTART;VALUE=DATE:20240108",
	"DTEND;VALUE=DATE:20240111",
	"SUMMARY:Vacation",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:weekly",
	"DTSTAMP:20240101T000000Z",
	"DTSTART:20240101T080000Z",
	"DTEND:20240101T090000Z",
	"RRULE:FREQ=WEEKLY;COUNT=4",
	"EXDATE:20240108T080000Z",
	"SUMMARY:Weekly",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:weekly",
	"DTSTAMP:20240101T000000Z",
	"RECURRENCE-ID:20240115T080000Z",
	"DTSTART:20240115T120000Z",
	"DTEND:20240115T130000Z",
	"SUMMARY:Weekly (moved)",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"DTSTAMP:20240101T000000Z",
	"DTSTART:20240105T090000Z",
	"SUMMARY:No UID",
	"END:VEVENT",
)

var team = Source{ID: "team", URL: "https://example.com/team.ics", Color: "green"}

func TestParseICS(t *testing.T) {
	events, err := ParseICS(team, fixture)
	require.NoError(t, err)
	require.Len(t, events, 4)

	byUID := map[string][]ParsedEvent{}
	for _, ev := range events {
		byUID[ev.UID] = append(byUID[ev.UID], ev)
	}

	standup := byUID["meeting-1"][0]
	assert.Equal(t, "Standup", standup.Summary)
	assert.Equal(t, "red", standup.Color)
	assert.Equal(t, []string{"meeting"}, standup.Categories)
	assert.False(t, standup.AllDay)
	assert.True(t, standup.Start.Equal(time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)))

	vacation := byUID["vacation-1"][0]
	assert.True(t, vacation.AllDay)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), vacation.Start)
	assert.Equal(t, time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), vacation.End)

	require.Len(t, byUID["weekly"], 2)
}

func TestParseICS_Empty(t *testing.T) {
	_, err := ParseICS(team, nil)
	assert.Error(t, err)
}

func TestExpandEvents(t *testing.T) {
	parsed, err := ParseICS(team, fixture)
	require.NoError(t, err)

	res, err := ExpandEvents(parsed, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC),
		DefaultColor:    team.Color,
	})
	require.NoError(t, err)
	assert.Empty(t, res.TruncatedEvents)

	byID := map[string]model.CalendarEvent{}
	for _, ev := range res.Events {
		byID[ev.ID] = ev
	}
	require.Len(t, byID, 5)

	standup := byID["team/meeting-1"]
	assert.Equal(t, model.ColorRed, standup.Color)
	assert.Equal(t, "meeting", standup.Kind)
	assert.Equal(t, time.Date(2024, 1, 5, 9, 59, 59, 999999999, time.UTC), standup.End)

	vacation := byID["team/vacation-1"]
	assert.True(t, vacation.AllDay)
	assert.Equal(t, model.ColorGreen, vacation.Color)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), vacation.Start)
	assert.Equal(t, 10, vacation.End.Day())

	assert.Contains(t, byID, "team/weekly@20240101T080000Z")
	assert.NotContains(t, byID, "team/weekly@20240108T080000Z")
	moved, ok := byID["team/weekly@20240115T120000Z"]
	require.True(t, ok)
	assert.Equal(t, "Weekly (moved)", moved.Title)
	assert.Contains(t, byID, "team/weekly@20240122T080000Z")
}

func TestExpandEvents_AllDayPinnedToDisplayZone(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	parsed, err := ParseICS(team, fixture)
	require.NoError(t, err)

	res, err := ExpandEvents(parsed, ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      time.Date(2024, 1, 1, 0, 0, 0, 0, loc),
		RangeEnd:        time.Date(2024, 1, 31, 0, 0, 0, 0, loc),
	})
	require.NoError(t, err)

	for _, ev := range res.Events {
		if ev.ID == "team/vacation-1" {
			assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, loc), ev.Start)
			return
		}
	}
	t.Fatal("vacation event missing")
}

func TestExpandEvents_Cap(t *testing.T) {
	body := calendar(
		"BEGIN:VEVENT",
		"UID:daily",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240101T080000Z",
		"DTEND:20240101T090000Z",
		"RRULE:FREQ=DAILY",
		"END:VEVENT",
	)
	parsed, err := ParseICS(team, body)
	require.NoError(t, err)

	res, err := ExpandEvents(parsed, ExpandConfig{
		DisplayLocation:        time.UTC,
		RangeStart:             time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:               time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		MaxOccurrencesPerEvent: 10,
	})
	require.NoError(t, err)
	assert.Len(t, res.Events, 10)
	assert.Equal(t, []string{"daily"}, res.TruncatedEvents)
}

func TestExpandEvents_BadRange(t *testing.T) {
	_, err := ExpandEvents(nil, ExpandConfig{
		RangeStart: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Error(t, err)
}

func TestExpandEvents_BackwardsEventIsReported(t *testing.T) {
	body := calendar(
		"BEGIN:VEVENT",
		"UID:bw",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240110T100000Z",
		"DTEND:20240108T100000Z",
		"SUMMARY:Backwards",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:bw-day",
		"DTSTAMP:20240101T000000Z",
		"DTSTART;VALUE=DATE:20240220",
		"DTEND;VALUE=DATE:20240218",
		"SUMMARY:Backwards day",
		"END:VEVENT",
	)
	parsed, err := ParseICS(team, body)
	require.NoError(t, err)
	require.Len(t, parsed, 2)

	res, err := ExpandEvents(parsed, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, res.Events, 2)
	for _, ev := range res.Events {
		assert.True(t, ev.End.Before(ev.Start), ev.ID)
	}

	r := layout.Compute(res.Events, 2024, layout.Options{Location: time.UTC})
	assert.Empty(t, r.Bars)
	require.Len(t, r.Diagnostics, 2)
	for _, d := range r.Diagnostics {
		assert.ErrorIs(t, d, layout.ErrInvalidInterval)
	}
}

func TestExpandEvents_Sequence(t *testing.T) {
	body := calendar(
		"BEGIN:VEVENT",
		"UID:review",
		"DTSTAMP:20240101T000000Z",
		"SEQUENCE:0",
		"DTSTART:20240305T090000Z",
		"DTEND:20240305T100000Z",
		"SUMMARY:Review (draft)",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:review",
		"DTSTAMP:20240102T000000Z",
		"SEQUENCE:2",
		"DTSTART:20240306T090000Z",
		"DTEND:20240306T100000Z",
		"SUMMARY:Review",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:daily",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240401T080000Z",
		"DTEND:20240401T090000Z",
		"RRULE:FREQ=DAILY;COUNT=2",
		"SUMMARY:Daily",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:daily",
		"DTSTAMP:20240103T000000Z",
		"SEQUENCE:3",
		"RECURRENCE-ID:20240402T080000Z",
		"DTSTART:20240402T150000Z",
		"DTEND:20240402T160000Z",
		"SUMMARY:Daily (late)",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:daily",
		"DTSTAMP:20240102T000000Z",
		"SEQUENCE:1",
		"RECURRENCE-ID:20240402T080000Z",
		"DTSTART:20240402T120000Z",
		"DTEND:20240402T130000Z",
		"SUMMARY:Daily (noon)",
		"END:VEVENT",
	)
	parsed, err := ParseICS(team, body)
	require.NoError(t, err)

	res, err := ExpandEvents(parsed, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	byID := map[string]model.CalendarEvent{}
	for _, ev := range res.Events {
		byID[ev.ID] = ev
	}
	require.Len(t, byID, 3)
	assert.Equal(t, "Review", byID["team/review"].Title)
	assert.Equal(t, 6, byID["team/review"].Start.Day())
	late, ok := byID["team/daily@20240402T150000Z"]
	require.True(t, ok)
	assert.Equal(t, "Daily (late)", late.Title)
}

func TestFetcher_ConditionalRequestsAndFallback(t *testing.T) {
	var hits, status atomic.Int32
	status.Store(http.StatusOK)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch {
		case status.Load() != http.StatusOK:
			w.WriteHeader(int(status.Load()))
		case r.Header.Get("If-None-Match") == `"v1"`:
			w.WriteHeader(http.StatusNotModified)
		default:
			w.Header().Set("ETag", `"v1"`)
			_, _ = w.Write(fixture)
		}
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "remote", URL: srv.URL + "/feed.ics?token=secret"}
	ctx := context.Background()

	first, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, fixture, first.Body)

	second, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, fixture, second.Body)

	status.Store(http.StatusInternalServerError)
	third, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, third.FromCache)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetcher_ErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	results, errs := f.FetchAll(context.Background(), []Source{{ID: "gone", URL: srv.URL}})
	assert.Empty(t, results)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "404")
}

func TestLoadEvents_LocalFileAndBrokenSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.ics")
	require.NoError(t, os.WriteFile(path, fixture, 0o600))

	sources := []Source{
		{ID: "local", URL: "file://" + path},
		{ID: "missing", URL: filepath.Join(dir, "nope.ics")},
	}
	events, err := LoadEvents(context.Background(), NewFetcher(dir, nil), sources, time.UTC,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
	assert.Len(t, events, 5)
	for _, ev := range events {
		assert.Equal(t, "local", ev.SourceID)
	}
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/private/cal.ics?token=x"))
	assert.Equal(t, "http://host:8080/...(redacted)", redactURL("http://host:8080"))
	assert.Equal(t, "file://...(redacted)", redactURL("/etc/cal.ics"))
}
