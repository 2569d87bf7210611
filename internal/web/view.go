package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"yearcal/internal/layout"
	appLog "yearcal/internal/log"
	"yearcal/internal/model"
)

//go:embed templates/year.html
var templateFS embed.FS

var yearTemplate = template.Must(template.ParseFS(templateFS, "templates/year.html"))

type dayView struct {
	Day        int
	MonthLabel string
	Outside    bool // belongs to the neighbouring year
}

type barView struct {
	Title     string
	Color     string
	Left      string
	Width     string
	Top       int
	OpenLeft  bool
	OpenRight bool
}

type weekView struct {
	Days []dayView
	Bars []barView
	More int
}

type yearView struct {
	Year       int
	RowHeight  int
	LaneHeight int
	Weeks      []weekView
}

func percent(days int) string {
	return fmt.Sprintf("%.4f", float64(days)*100/model.DaysPerWeek)
}

// buildYearView turns a layout into template data. Overflowing bars and bars
// in lanes that do not fit in rowHeight are hidden and counted in More.
func buildYearView(res *layout.Result, geo layout.Geometry, rowHeight int) yearView {
	v := yearView{
		Year:       res.Year,
		RowHeight:  rowHeight,
		LaneHeight: geo.LaneHeight,
		Weeks:      make([]weekView, 0, len(res.Weeks)),
	}
	fit := geo.LanesThatFit(rowHeight)
	for i, week := range res.Weeks {
		wv := weekView{More: res.Overflow[i]}
		for _, d := range week {
			dv := dayView{Day: d.Day(), Outside: d.Year() != res.Year}
			if d.Day() == 1 {
				dv.MonthLabel = strings.ToUpper(d.Month().String()[:3])
			}
			wv.Days = append(wv.Days, dv)
		}
		for _, b := range res.VisibleBars(i) {
			if b.Lane >= fit {
				wv.More++
				continue
			}
			wv.Bars = append(wv.Bars, barView{
				Title:     b.Event.Title,
				Color:     string(b.Event.Color),
				Left:      percent(b.StartDayIdx),
				Width:     percent(b.EndDayIdx - b.StartDayIdx + 1),
				Top:       geo.BottomOffset(rowHeight, b.Lane),
				OpenLeft:  b.ContinuesBefore,
				OpenRight: b.ContinuesAfter,
			})
		}
		v.Weeks = append(v.Weeks, wv)
	}
	return v
}

// handleYearView renders the year grid as HTML.
//
// GET /year?year=2024&max_lanes=3
func (s *Server) handleYearView(w http.ResponseWriter, r *http.Request) {
	year, maxLanes, err := s.layoutParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, _ := s.layoutFor(year, maxLanes)

	var buf bytes.Buffer
	if err := yearTemplate.Execute(&buf, buildYearView(res, s.geometry(), s.cfg.RowHeight)); err != nil {
		appLog.Error("year view render failed", err, "year", year)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
