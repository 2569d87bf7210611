package ics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "yearcal/internal/log"
	"yearcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone all events are converted to. Nil means
	// time.Local. All-day dates are pinned to midnights in this zone.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the occurrences (inclusive).
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway rules. Zero means 5000.
	MaxOccurrencesPerEvent int

	// DefaultColor applies to events without a COLOR property.
	DefaultColor string
}

// ExpandResult holds concrete events and the UIDs that hit the cap.
type ExpandResult struct {
	Events          []model.CalendarEvent
	TruncatedEvents []string
}

// ExpandEvents turns parsed VEVENTs into concrete calendar events inside
// the configured range:
//
//   - single events pass through when they intersect the range
//   - RRULE events are expanded with EXDATE removal
//   - RECURRENCE-ID overrides replace the matching instance
//   - only the highest SEQUENCE of a UID or an override is used
//   - cancelled instances are dropped
//
// ICS end times are exclusive; the produced events use inclusive ends (one
// nanosecond earlier) so an event ending at midnight does not spill onto
// the next day.
func ExpandEvents(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	// Iterate UIDs in order so the output does not depend on map order.
	uids := make([]string, 0, len(baseByUID))
	for uid := range baseByUID {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	for _, uid := range uids {
		ov := overridesByUID[uid]
		truncated := false
		for _, ev := range latestRevision(baseByUID[uid]) {
			occ, hitCap := expandEvent(ev, ov, cfg)
			truncated = truncated || hitCap
			result.Events = append(result.Events, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: truncated occurrences", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	if ev.RawRRule == "" {
		if ev.Cancelled {
			return nil, false
		}
		start, end := displayInterval(ev, ev.Start, ev.End, cfg.DisplayLocation)
		if !overlaps(start, end, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false
		}
		return []model.CalendarEvent{makeEvent(ev, start, end, false, cfg)}, false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event length so instances that started
	// before the range but are still running are kept.
	dur := ev.End.Sub(ev.Start)
	widen := max(dur, 0)
	from := cfg.RangeStart.Add(-widen).In(ev.Start.Location())
	to := cfg.RangeEnd.In(ev.Start.Location())
	if ev.AllDay {
		// Floating dates: compare on the calendar, not the instant.
		from = floatingDate(cfg.RangeStart.In(cfg.DisplayLocation), time.UTC).Add(-widen)
		to = floatingDate(cfg.RangeEnd.In(cfg.DisplayLocation), time.UTC)
	}

	starts := set.Between(from, to, true)
	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.CalendarEvent, 0, len(starts))
	for _, occStart := range starts {
		inst := ev
		instStart, instEnd := occStart, occStart.Add(dur)
		if o, ok := findOverride(overrides, occStart); ok {
			inst = o
			instStart, instEnd = o.Start, o.End
		}
		if inst.Cancelled {
			continue
		}
		start, end := displayInterval(inst, instStart, instEnd, cfg.DisplayLocation)
		if !overlaps(start, end, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, makeEvent(inst, start, end, true, cfg))
	}
	return out, hitCap
}

// latestRevision keeps the VEVENTs carrying the highest SEQUENCE.
func latestRevision(evs []ParsedEvent) []ParsedEvent {
	if len(evs) < 2 {
		return evs
	}
	top := evs[0].Seq
	for _, ev := range evs[1:] {
		top = max(top, ev.Seq)
	}
	out := make([]ParsedEvent, 0, len(evs))
	for _, ev := range evs {
		if ev.Seq == top {
			out = append(out, ev)
		}
	}
	return out
}

// findOverride returns the override whose RECURRENCE-ID equals start. When
// several match, the highest SEQUENCE wins, then the last one in the feed.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	var (
		found ParsedEvent
		ok    bool
	)
	for _, ov := range overrides {
		if ov.Recurrence == nil || !ov.Recurrence.Equal(start) {
			continue
		}
		if !ok || ov.Seq >= found.Seq {
			found, ok = ov, true
		}
	}
	return found, ok
}

// displayInterval converts an exclusive ICS interval into an inclusive one
// in loc. Empty and backwards intervals are returned unchanged.
func displayInterval(ev ParsedEvent, start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	if ev.AllDay {
		start = floatingDate(start, loc)
		end = floatingDate(end, loc)
	} else {
		start = start.In(loc)
		end = end.In(loc)
	}
	if end.After(start) {
		end = end.Add(-time.Nanosecond)
	}
	return start, end
}

// floatingDate keeps the calendar date of t and places it at midnight in loc.
func floatingDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func makeEvent(ev ParsedEvent, start, end time.Time, recurring bool, cfg ExpandConfig) model.CalendarEvent {
	id := ev.Source.ID + "/" + ev.UID
	if recurring || ev.IsOverride {
		id = fmt.Sprintf("%s@%s", id, start.UTC().Format("20060102T150405Z"))
	}

	color := ev.Color
	if color == "" {
		color = cfg.DefaultColor
	}
	kind := ""
	if len(ev.Categories) > 0 {
		kind = ev.Categories[0]
	}

	return model.CalendarEvent{
		ID:       id,
		SourceID: ev.Source.ID,
		Title:    ev.Summary,
		Kind:     kind,
		Color:    model.ParseColor(color),
		AllDay:   ev.AllDay,
		Start:    start,
		End:      end,
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
