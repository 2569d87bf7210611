package web

import (
	"net/http"
	"time"

	"yearcal/internal/layout"
	"yearcal/internal/model"
)

const dayFormat = "2006-01-02"

type eventDTO struct {
	ID       string    `json:"id"`
	SourceID string    `json:"source_id"`
	Title    string    `json:"title"`
	Kind     string    `json:"kind,omitempty"`
	Color    string    `json:"color"`
	AllDay   bool      `json:"all_day"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

type eventsResponse struct {
	Generation uint64     `json:"generation"`
	LoadedAt   time.Time  `json:"loaded_at"`
	Events     []eventDTO `json:"events"`
	Error      string     `json:"error,omitempty"`
}

type barDTO struct {
	EventID         string `json:"event_id"`
	Title           string `json:"title"`
	Color           string `json:"color"`
	StartDayIdx     int    `json:"start_day_idx"`
	EndDayIdx       int    `json:"end_day_idx"`
	Lane            int    `json:"lane"`
	Overflow        bool   `json:"overflow"`
	ContinuesBefore bool   `json:"continues_before"`
	ContinuesAfter  bool   `json:"continues_after"`
	// Top is the pixel offset of the bar within a row of row_height.
	Top int `json:"top"`
}

type weekDTO struct {
	Index    int      `json:"index"`
	Days     []string `json:"days"`
	Bars     []barDTO `json:"bars"`
	Overflow int      `json:"overflow"`
}

type diagnosticDTO struct {
	EventID string `json:"event_id"`
	Error   string `json:"error"`
}

// LayoutResponse is the JSON document of one year's layout.
type LayoutResponse struct {
	Year        int             `json:"year"`
	MaxLanes    int             `json:"max_lanes"`
	Timezone    string          `json:"timezone"`
	Generation  uint64          `json:"generation"`
	RowHeight   int             `json:"row_height"`
	Weeks       []weekDTO       `json:"weeks"`
	Diagnostics []diagnosticDTO `json:"diagnostics"`
}

func toEventDTO(ev model.CalendarEvent) eventDTO {
	return eventDTO{
		ID:       ev.ID,
		SourceID: ev.SourceID,
		Title:    ev.Title,
		Kind:     ev.Kind,
		Color:    string(ev.Color),
		AllDay:   ev.AllDay,
		Start:    ev.Start,
		End:      ev.End,
	}
}

// handleEvents returns the current event snapshot.
func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	snap := s.snaps.Snapshot()
	resp := eventsResponse{
		Generation: snap.Generation,
		LoadedAt:   snap.LoadedAt,
		Events:     make([]eventDTO, 0, len(snap.Events)),
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	for _, ev := range snap.Events {
		resp.Events = append(resp.Events, toEventDTO(ev))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLayout returns the lane layout of a year.
//
// GET /api/layout?year=2024&max_lanes=3
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	year, maxLanes, err := s.layoutParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, snap := s.layoutFor(year, maxLanes)
	writeJSON(w, http.StatusOK, NewLayoutResponse(res, s.loc, s.geometry(), s.cfg.RowHeight, snap.Generation))
}

func (s *Server) geometry() layout.Geometry {
	return layout.Geometry{LaneHeight: s.cfg.LaneHeight, LaneGap: s.cfg.LaneGap}
}

// NewLayoutResponse flattens res into its JSON form; bar tops are computed
// with geo for rows rowHeight pixels tall.
func NewLayoutResponse(res *layout.Result, loc *time.Location, geo layout.Geometry, rowHeight int, generation uint64) LayoutResponse {
	resp := LayoutResponse{
		Year:        res.Year,
		MaxLanes:    res.MaxLanes,
		Timezone:    loc.String(),
		Generation:  generation,
		RowHeight:   rowHeight,
		Weeks:       make([]weekDTO, 0, len(res.Weeks)),
		Diagnostics: make([]diagnosticDTO, 0, len(res.Diagnostics)),
	}

	for i, week := range res.Weeks {
		wd := weekDTO{
			Index:    i,
			Days:     make([]string, 0, model.DaysPerWeek),
			Bars:     make([]barDTO, 0, len(res.Bars[i])),
			Overflow: res.Overflow[i],
		}
		for _, d := range week {
			wd.Days = append(wd.Days, d.Format(dayFormat))
		}
		for _, b := range res.Bars[i] {
			wd.Bars = append(wd.Bars, barDTO{
				EventID:         b.EventID(),
				Title:           b.Event.Title,
				Color:           string(b.Event.Color),
				StartDayIdx:     b.StartDayIdx,
				EndDayIdx:       b.EndDayIdx,
				Lane:            b.Lane,
				Overflow:        b.Overflow,
				ContinuesBefore: b.ContinuesBefore,
				ContinuesAfter:  b.ContinuesAfter,
				Top:             geo.BottomOffset(rowHeight, b.Lane),
			})
		}
		resp.Weeks = append(resp.Weeks, wd)
	}

	for _, d := range res.Diagnostics {
		resp.Diagnostics = append(resp.Diagnostics, diagnosticDTO{EventID: d.EventID, Error: d.Err.Error()})
	}
	return resp
}
