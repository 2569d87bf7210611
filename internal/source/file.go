// Package source loads plain event lists from YAML or JSON files.
//
// A file is either a bare list of events or a mapping with an "events" key:
//
//	events:
//	  - id: shift-0108
//	    title: Early shift
//	    start: 2024-01-08T06:00:00+01:00
//	    end: 2024-01-08T14:00:00+01:00
//	    color: blue
//	    kind: shift
//	  - title: Vacation
//	    start: 2024-07-01
//	    end: 2024-07-14
//
// JSON files decode the same way since JSON is valid YAML.
package source

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	appLog "yearcal/internal/log"
	"yearcal/internal/model"
)

// eventNamespace seeds derived IDs for records that do not carry one.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:yearcal:event"))

type record struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Start  string `yaml:"start"`
	End    string `yaml:"end"`
	AllDay bool   `yaml:"all_day"`
	Color  string `yaml:"color"`
	Kind   string `yaml:"kind"`
}

type document struct {
	Events []record `yaml:"events"`
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

const dateLayout = "2006-01-02"

// Decode parses event records from data. sourceID is stamped on every event
// and used to derive IDs for records without one. A record with an
// unparseable date is skipped and reported in the joined error; the others
// are still returned.
func Decode(sourceID string, data []byte, loc *time.Location) ([]model.CalendarEvent, error) {
	if loc == nil {
		loc = time.Local
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("source %s: %w", sourceID, err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	var records []record
	switch root.Content[0].Kind {
	case yaml.SequenceNode:
		if err := root.Content[0].Decode(&records); err != nil {
			return nil, fmt.Errorf("source %s: %w", sourceID, err)
		}
	case yaml.MappingNode:
		var doc document
		if err := root.Content[0].Decode(&doc); err != nil {
			return nil, fmt.Errorf("source %s: %w", sourceID, err)
		}
		records = doc.Events
	default:
		return nil, fmt.Errorf("source %s: expected a list of events or an events mapping", sourceID)
	}

	events := make([]model.CalendarEvent, 0, len(records))
	var errs []error
	for i, rec := range records {
		ev, err := rec.toEvent(sourceID, loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("source %s: event #%d: %w", sourceID, i, err))
			continue
		}
		events = append(events, ev)
	}
	return events, errors.Join(errs...)
}

func (r record) toEvent(sourceID string, loc *time.Location) (model.CalendarEvent, error) {
	start, startIsDate, err := parseWhen(r.Start, loc)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("start: %w", err)
	}
	end, endIsDate := start, startIsDate
	if strings.TrimSpace(r.End) != "" {
		if end, endIsDate, err = parseWhen(r.End, loc); err != nil {
			return model.CalendarEvent{}, fmt.Errorf("end: %w", err)
		}
	}

	allDay := r.AllDay || (startIsDate && endIsDate)
	if allDay {
		start = startOfDay(start)
		end = startOfDay(end).AddDate(0, 0, 1).Add(-time.Nanosecond)
	} else if endIsDate {
		end = startOfDay(end).AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	id := r.ID
	if id == "" {
		key := strings.Join([]string{sourceID, r.Title, r.Start, r.End}, "\x00")
		id = uuid.NewSHA1(eventNamespace, []byte(key)).String()
	}

	// End before start is kept as is: the layout engine rejects and
	// reports it rather than the loader guessing.
	return model.CalendarEvent{
		ID:       id,
		SourceID: sourceID,
		Title:    r.Title,
		Kind:     r.Kind,
		Color:    model.ParseColor(r.Color),
		AllDay:   allDay,
		Start:    start,
		End:      end,
	}, nil
}

// parseWhen accepts a date-time or a bare date; the bool reports a date.
func parseWhen(s string, loc *time.Location) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, errors.New("empty value")
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, true, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized time %q", s)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// LoadFiles reads every path. Unreadable or malformed files are logged and
// skipped; their errors are joined into the returned error.
func LoadFiles(paths []string, loc *time.Location) ([]model.CalendarEvent, error) {
	var out []model.CalendarEvent
	var errs []error

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			appLog.Error("event file read failed", err, "path", path)
			errs = append(errs, err)
			continue
		}
		events, err := Decode(path, data, loc)
		if err != nil {
			appLog.Error("event file decode failed", err, "path", path)
			errs = append(errs, err)
		}
		out = append(out, events...)
	}
	return out, errors.Join(errs...)
}
