package layout

// barBottomPadding is the gap left under the lowest bar when bars are
// stacked from the bottom of a row.
const barBottomPadding = 2

// Geometry converts lanes into vertical pixel offsets. It knows nothing about
// dates.
type Geometry struct {
	LaneHeight int
	LaneGap    int
}

// Offset is the distance in pixels from the top of the bar area to the top
// of lane.
func (g Geometry) Offset(lane int) int {
	return lane * (g.LaneHeight + g.LaneGap)
}

// BottomOffset is the top position of lane when lanes grow upwards from the
// bottom of a row rowHeight pixels tall.
func (g Geometry) BottomOffset(rowHeight, lane int) int {
	return rowHeight - (g.LaneHeight+g.LaneGap)*(lane+1) - barBottomPadding
}

// LanesThatFit reports how many bottom-anchored lanes fit in a row
// rowHeight pixels tall, that is the lanes whose BottomOffset is not negative.
func (g Geometry) LanesThatFit(rowHeight int) int {
	step := g.LaneHeight + g.LaneGap
	if step <= 0 || rowHeight <= barBottomPadding {
		return 0
	}
	return (rowHeight - barBottomPadding) / step
}
