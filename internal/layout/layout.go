// Package layout computes the week grid of a year and a collision-free lane
// for every event bar drawn on it.
//
// Everything here is pure: no I/O, no logging, no shared state. Compute can
// be called from any number of goroutines. Results are not cached; callers
// that render often should memoize on (events, year, options).
package layout

import (
	"time"

	"yearcal/internal/model"
)

// Options tunes Compute. The zero value is usable.
type Options struct {
	// MaxLanes is the number of visible lanes per week. Zero means
	// DefaultMaxLanes.
	MaxLanes int
	// Location is the reference timezone of the grid. Nil means time.Local.
	Location *time.Location
}

func (o Options) withDefaults() Options {
	if o.MaxLanes <= 0 {
		o.MaxLanes = DefaultMaxLanes
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Result is the layout of one year.
type Result struct {
	Year     int
	MaxLanes int

	Weeks []model.WeekBucket
	// Bars maps a week index to the bars drawn in that week.
	Bars map[int][]model.EventBar
	// Overflow maps a week index to its number of overflowing bars.
	Overflow map[int]int
	// Diagnostics lists the events that were rejected.
	Diagnostics []Diagnostic
}

// WeekBars returns the bars of week i (nil when the week is empty).
func (r *Result) WeekBars(i int) []model.EventBar {
	return r.Bars[i]
}

// VisibleBars returns the non-overflowing bars of week i.
func (r *Result) VisibleBars(i int) []model.EventBar {
	var out []model.EventBar
	for _, b := range r.Bars[i] {
		if !b.Overflow {
			out = append(out, b)
		}
	}
	return out
}

// WeekIndexOf returns the index of the week containing t, or -1 when t is
// outside the grid.
func (r *Result) WeekIndexOf(t time.Time) int {
	if len(r.Weeks) == 0 {
		return -1
	}
	day := midnight(t, r.Weeks[0].First().Location())
	i := firstWeekEndingOnOrAfter(r.Weeks, day)
	if i == len(r.Weeks) || day.Before(r.Weeks[i].First()) {
		return -1
	}
	return i
}

// Compute lays out events on the week grid of year.
//
// Invalid events are excluded and reported in Result.Diagnostics. Events
// that fall entirely outside the grid simply produce no bars.
func Compute(events []model.CalendarEvent, year int, opts Options) *Result {
	opts = opts.withDefaults()

	weeks := BuildWeeks(time.Date(year, time.January, 1, 0, 0, 0, 0, opts.Location))
	valid, diags := Validate(events)

	var spans []model.EventSpan
	for _, ev := range valid {
		spans = append(spans, resolveSpans(ev, weeks)...)
	}
	assigned := AssignLanes(spans, opts.MaxLanes)

	return &Result{
		Year:        year,
		MaxLanes:    opts.MaxLanes,
		Weeks:       weeks,
		Bars:        assigned.Bars,
		Overflow:    assigned.Overflow,
		Diagnostics: diags,
	}
}
