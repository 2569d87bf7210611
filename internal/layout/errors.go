package layout

import (
	"cmp"
	"errors"
	"fmt"
	"time"

	"yearcal/internal/model"
)

var (
	// ErrInvalidInterval marks an event whose End is before its Start.
	ErrInvalidInterval = errors.New("layout: end before start")
	// ErrMissingID marks an event without an ID.
	ErrMissingID = errors.New("layout: missing event id")
	// ErrDuplicateID marks an event whose ID is taken by a preferred event
	// with the same ID.
	ErrDuplicateID = errors.New("layout: duplicate event id")
)

// Diagnostic records an event that was excluded from the layout.
type Diagnostic struct {
	EventID string
	Err     error
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("event %q: %v", d.EventID, d.Err)
}

func (d Diagnostic) Unwrap() error { return d.Err }

// Validate splits events into those that can be laid out and diagnostics for
// those that cannot. Rejected events never affect the others. The returned
// pointers refer to a private copy of the input.
//
// Of several events sharing an ID, the one that sorts first in lane order is
// kept, so the choice does not depend on input order.
func Validate(events []model.CalendarEvent) ([]*model.CalendarEvent, []Diagnostic) {
	owned := make([]model.CalendarEvent, len(events))
	copy(owned, events)

	valid := make([]*model.CalendarEvent, 0, len(owned))
	var diags []Diagnostic
	kept := make(map[string]int, len(owned))

	for i := range owned {
		ev := &owned[i]
		switch {
		case ev.ID == "":
			diags = append(diags, Diagnostic{EventID: ev.ID, Err: ErrMissingID})
			continue
		case ev.End.Before(ev.Start):
			diags = append(diags, Diagnostic{
				EventID: ev.ID,
				Err: fmt.Errorf("%w: start=%s end=%s", ErrInvalidInterval,
					ev.Start.Format(time.RFC3339), ev.End.Format(time.RFC3339)),
			})
			continue
		}
		if j, dup := kept[ev.ID]; dup {
			if preferDuplicate(ev, valid[j]) {
				valid[j] = ev
			}
			diags = append(diags, Diagnostic{EventID: ev.ID, Err: ErrDuplicateID})
			continue
		}
		kept[ev.ID] = len(valid)
		valid = append(valid, ev)
	}
	return valid, diags
}

// preferDuplicate reports whether a should replace b, which has the same ID.
func preferDuplicate(a, b *model.CalendarEvent) bool {
	c := cmp.Or(
		compareEvents(a, b),
		cmp.Compare(a.Title, b.Title),
		cmp.Compare(a.SourceID, b.SourceID),
		cmp.Compare(a.Kind, b.Kind),
		cmp.Compare(a.Color, b.Color),
	)
	if c == 0 && a.AllDay != b.AllDay {
		return a.AllDay
	}
	return c < 0
}
