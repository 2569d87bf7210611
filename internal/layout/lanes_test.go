package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"yearcal/internal/model"
)

func TestSpanMask(t *testing.T) {
	assert.Equal(t, dayMask(0b0000001), spanMask(0, 0))
	assert.Equal(t, dayMask(0b1000000), spanMask(6, 6))
	assert.Equal(t, dayMask(0b1111111), spanMask(0, 6))
	assert.Equal(t, dayMask(0b0011100), spanMask(2, 4))
}

func TestLaneArena_Place(t *testing.T) {
	a := newLaneArena()

	assert.Equal(t, 0, a.place(0, spanMask(0, 2)))
	assert.Equal(t, 1, a.place(0, spanMask(2, 3)))
	assert.Equal(t, 0, a.place(0, spanMask(3, 6)))
	assert.Equal(t, 2, a.place(0, spanMask(0, 6)))
	// Other weeks are independent.
	assert.Equal(t, 0, a.place(1, spanMask(0, 6)))
}

func TestAssignLanes_DefaultCap(t *testing.T) {
	var spans []model.EventSpan
	for i := 0; i < 4; i++ {
		ev := event(string(rune('a'+i)), at(2024, 1, 1, i, 0), at(2024, 1, 1, 12, 0))
		spans = append(spans, model.EventSpan{Event: &ev, WeekIndex: 0, StartDayIdx: 0, EndDayIdx: 0})
	}

	got := AssignLanes(spans, 0)

	assert.Len(t, got.Bars[0], 4)
	assert.Equal(t, 1, got.Overflow[0])
	last := got.Bars[0][3]
	assert.Equal(t, "d", last.EventID())
	assert.Equal(t, DefaultMaxLanes, last.Lane)
	assert.True(t, last.Overflow)
}

func TestGeometry(t *testing.T) {
	g := Geometry{LaneHeight: 14, LaneGap: 2}

	assert.Equal(t, 0, g.Offset(0))
	assert.Equal(t, 32, g.Offset(2))
	// Same formula the year view uses: row - (h+gap)*(lane+1) - 2.
	assert.Equal(t, 52-16-2, g.BottomOffset(52, 0))
	assert.Equal(t, 52-48-2, g.BottomOffset(52, 2))
	assert.Equal(t, 3, g.LanesThatFit(52))
	assert.Equal(t, 3, g.LanesThatFit(50))
	assert.Equal(t, 2, g.LanesThatFit(49))
	assert.GreaterOrEqual(t, g.BottomOffset(50, 2), 0)
	assert.Less(t, g.BottomOffset(49, 2), 0)
	assert.Equal(t, 0, g.LanesThatFit(2))
	assert.Equal(t, 0, Geometry{}.LanesThatFit(100))
}
