package model

import (
	"strings"
	"time"
)

// DaysPerWeek is the width of a WeekBucket.
const DaysPerWeek = 7

// Color is the display tag attached to an event.
type Color string

const (
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorPurple Color = "purple"
	ColorPink   Color = "pink"
	ColorOrange Color = "orange"
	ColorGray   Color = "gray"
	ColorTeal   Color = "teal"
)

var knownColors = map[Color]struct{}{
	ColorBlue: {}, ColorGreen: {}, ColorRed: {}, ColorYellow: {}, ColorPurple: {},
	ColorPink: {}, ColorOrange: {}, ColorGray: {}, ColorTeal: {},
}

// ParseColor maps a free-form tag onto a known Color. Unknown or empty tags
// become ColorGray.
func ParseColor(s string) Color {
	c := Color(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownColors[c]; ok {
		return c
	}
	return ColorGray
}

// CalendarEvent is a single, already expanded event as supplied to the
// layout engine. Start and End are inclusive instants in one reference
// timezone; End must not be before Start.
type CalendarEvent struct {
	ID       string // unique and stable across refreshes
	SourceID string // feed or file the event came from

	Title string
	Kind  string // e.g. "shift", "vacation"
	Color Color

	AllDay bool

	Start time.Time
	End   time.Time
}

// Duration is End - Start.
func (e CalendarEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// WeekBucket holds the seven midnights of one Monday-first week.
type WeekBucket [DaysPerWeek]time.Time

// First returns the Monday of the week.
func (w WeekBucket) First() time.Time { return w[0] }

// Last returns the Sunday of the week.
func (w WeekBucket) Last() time.Time { return w[DaysPerWeek-1] }

// EventSpan is the part of an event that falls inside one week, clipped to
// day indices 0..6.
type EventSpan struct {
	Event     *CalendarEvent
	WeekIndex int

	StartDayIdx int
	EndDayIdx   int

	// ContinuesBefore / ContinuesAfter report whether the event extends past
	// the week's first or last day.
	ContinuesBefore bool
	ContinuesAfter  bool
}

// EventBar is an EventSpan with its assigned lane.
type EventBar struct {
	EventSpan

	Lane int
	// Overflow is set when Lane is beyond the configured lane cap; the bar
	// still owns a non-colliding lane but renderers will usually hide it
	// behind a "+N more" marker.
	Overflow bool
}

// EventID is a shorthand for the owning event's ID.
func (b EventBar) EventID() string {
	if b.Event == nil {
		return ""
	}
	return b.Event.ID
}
