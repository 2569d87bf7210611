package layout

import (
	"sort"
	"time"

	"yearcal/internal/model"
)

// BuildWeeks returns the Monday-first weeks covering the whole calendar year
// of ref, in ref's location. The first week may begin in December of the
// previous year and the last may end in January of the next.
//
// Days are produced with time.Date arithmetic rather than 24h additions so
// that every entry is a local midnight even across DST changes.
func BuildWeeks(ref time.Time) []model.WeekBucket {
	loc := ref.Location()
	year := ref.Year()

	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	dec31 := time.Date(year, time.December, 31, 0, 0, 0, 0, loc)

	// Weekday: Sunday=0. Shift so Monday=0.
	back := (int(jan1.Weekday()) + 6) % 7
	day := 1 - back

	weeks := make([]model.WeekBucket, 0, 54)
	for {
		var w model.WeekBucket
		for i := range w {
			w[i] = time.Date(year, time.January, day+i, 0, 0, 0, 0, loc)
		}
		weeks = append(weeks, w)
		if !w.Last().Before(dec31) {
			break
		}
		day += model.DaysPerWeek
	}
	return weeks
}

// firstWeekEndingOnOrAfter returns the index of the first week whose Sunday is
// on or after day, or len(weeks) if none is.
func firstWeekEndingOnOrAfter(weeks []model.WeekBucket, day time.Time) int {
	return sort.Search(len(weeks), func(i int) bool {
		return !weeks[i].Last().Before(day)
	})
}

// midnight truncates t to the start of its calendar day in loc.
func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
