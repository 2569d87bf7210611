package layout

import (
	"time"

	"yearcal/internal/model"
)

// ResolveSpan clips ev to week. The bool result is false when the event does
// not touch the week at all.
//
// Overlap is a closed interval test on calendar days in the week's location:
// the event's last day must be on or after Monday and its first day on or
// before Sunday. Day indices come from calendar-day equality, so the time of
// day of Start/End never matters.
//
// ev must already be valid (End not before Start); see Validate.
func ResolveSpan(ev *model.CalendarEvent, weekIndex int, week model.WeekBucket) (model.EventSpan, bool) {
	loc := week.First().Location()
	first := midnight(ev.Start, loc)
	last := midnight(ev.End, loc)

	if last.Before(week.First()) || first.After(week.Last()) {
		return model.EventSpan{}, false
	}

	span := model.EventSpan{
		Event:           ev,
		WeekIndex:       weekIndex,
		StartDayIdx:     0,
		EndDayIdx:       model.DaysPerWeek - 1,
		ContinuesBefore: first.Before(week.First()),
		ContinuesAfter:  last.After(week.Last()),
	}
	if !span.ContinuesBefore {
		if i := dayIndex(week, first); i >= 0 {
			span.StartDayIdx = i
		}
	}
	if !span.ContinuesAfter {
		if i := dayIndex(week, last); i >= 0 {
			span.EndDayIdx = i
		}
	}
	return span, true
}

// resolveSpans returns every span of ev across weeks, in chronological order.
func resolveSpans(ev *model.CalendarEvent, weeks []model.WeekBucket) []model.EventSpan {
	if len(weeks) == 0 {
		return nil
	}
	loc := weeks[0].First().Location()

	var spans []model.EventSpan
	for i := firstWeekEndingOnOrAfter(weeks, midnight(ev.Start, loc)); i < len(weeks); i++ {
		span, ok := ResolveSpan(ev, i, weeks[i])
		if !ok {
			break
		}
		spans = append(spans, span)
	}
	return spans
}

func dayIndex(week model.WeekBucket, day time.Time) int {
	for i, d := range week {
		if sameDay(d, day) {
			return i
		}
	}
	return -1
}
