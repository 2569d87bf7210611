package layout

import (
	"cmp"
	"slices"

	"yearcal/internal/model"
)

// DefaultMaxLanes is the number of lanes a week shows before overflowing.
const DefaultMaxLanes = 3

// dayMask has bit d set for every day index d in [start, end].
type dayMask uint8

func spanMask(start, end int) dayMask {
	return dayMask((1<<(end+1) - 1) &^ (1<<start - 1))
}

// laneArena tracks, per week, which days each lane already covers.
// weeks[w][l] is the occupancy mask of lane l in week w.
type laneArena struct {
	weeks map[int][]dayMask
}

func newLaneArena() *laneArena {
	return &laneArena{weeks: make(map[int][]dayMask)}
}

// place claims the lowest lane in week that is free across mask and returns it.
// It never fails: when every existing lane conflicts a new one is opened.
func (a *laneArena) place(week int, mask dayMask) int {
	lanes := a.weeks[week]
	for l, taken := range lanes {
		if taken&mask == 0 {
			lanes[l] |= mask
			return l
		}
	}
	a.weeks[week] = append(lanes, mask)
	return len(lanes)
}

// compareEvents orders events longest first, then earliest start, then by ID.
func compareEvents(a, b *model.CalendarEvent) int {
	if c := cmp.Compare(b.Duration(), a.Duration()); c != 0 {
		return c
	}
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Assignment is the lane layout of a set of spans.
type Assignment struct {
	// Bars holds the bars of each week index, in placement order.
	Bars map[int][]model.EventBar
	// Overflow counts, per week index, the bars whose lane is at or beyond the
	// lane cap.
	Overflow map[int]int
}

// AssignLanes greedily assigns lanes to spans. Events are processed longest
// first (ties: earlier start, then ID) and each event's spans in week order;
// every span gets the lowest lane with no conflicting day in its week.
//
// Lanes at or beyond maxLanes are still handed out, so two bars never share
// a lane on the same day, but such bars are flagged Overflow.
func AssignLanes(spans []model.EventSpan, maxLanes int) Assignment {
	if maxLanes <= 0 {
		maxLanes = DefaultMaxLanes
	}

	ordered := slices.Clone(spans)
	slices.SortStableFunc(ordered, func(a, b model.EventSpan) int {
		if c := compareEvents(a.Event, b.Event); c != 0 {
			return c
		}
		return cmp.Compare(a.WeekIndex, b.WeekIndex)
	})

	out := Assignment{
		Bars:     make(map[int][]model.EventBar),
		Overflow: make(map[int]int),
	}
	arena := newLaneArena()

	for _, span := range ordered {
		lane := arena.place(span.WeekIndex, spanMask(span.StartDayIdx, span.EndDayIdx))
		bar := model.EventBar{
			EventSpan: span,
			Lane:      lane,
			Overflow:  lane >= maxLanes,
		}
		if bar.Overflow {
			out.Overflow[span.WeekIndex]++
		}
		out.Bars[span.WeekIndex] = append(out.Bars[span.WeekIndex], bar)
	}
	return out
}
