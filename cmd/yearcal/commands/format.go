package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"yearcal/internal/layout"
	"yearcal/internal/model"
)

var (
	headerColor = color.New(color.FgBlue, color.Bold)
	warnColor   = color.New(color.FgYellow)
	dimColor    = color.New(color.FgHiBlack)
)

var barColors = map[model.Color]*color.Color{
	model.ColorBlue:   color.New(color.FgBlue),
	model.ColorGreen:  color.New(color.FgGreen),
	model.ColorRed:    color.New(color.FgRed),
	model.ColorYellow: color.New(color.FgYellow),
	model.ColorPurple: color.New(color.FgMagenta),
	model.ColorPink:   color.New(color.FgHiMagenta),
	model.ColorOrange: color.New(color.FgHiRed),
	model.ColorGray:   color.New(color.FgHiBlack),
	model.ColorTeal:   color.New(color.FgCyan),
}

func barColor(c model.Color) *color.Color {
	if bc, ok := barColors[c]; ok {
		return bc
	}
	return barColors[model.ColorGray]
}

// dayStrip draws the seven columns of a week with the bar's days filled.
func dayStrip(b model.EventBar) string {
	var sb strings.Builder
	for d := 0; d < model.DaysPerWeek; d++ {
		if d >= b.StartDayIdx && d <= b.EndDayIdx {
			sb.WriteRune('█')
		} else {
			sb.WriteRune('·')
		}
	}
	return sb.String()
}

func continuation(b model.EventBar) string {
	switch {
	case b.ContinuesBefore && b.ContinuesAfter:
		return " ◂▸"
	case b.ContinuesBefore:
		return " ◂"
	case b.ContinuesAfter:
		return " ▸"
	}
	return ""
}

// printLayout writes a per-week text summary of res. Weeks without bars are
// left out unless all is set.
func printLayout(w io.Writer, res *layout.Result, tz string, all bool) {
	headerColor.Fprintf(w, "%d  %d weeks, %d lanes, %s\n", res.Year, len(res.Weeks), res.MaxLanes, tz)

	for i, week := range res.Weeks {
		bars := res.WeekBars(i)
		if len(bars) == 0 && !all {
			continue
		}
		fmt.Fprintf(w, "\nW%02d %s..%s\n", i+1, week.First().Format("2006-01-02"), week.Last().Format("01-02"))
		for _, b := range bars {
			if b.Overflow {
				continue
			}
			strip := barColor(b.Event.Color).Sprint(dayStrip(b))
			fmt.Fprintf(w, "  lane %d  %s  %s%s\n", b.Lane, strip, b.Event.Title, continuation(b))
		}
		if n := res.Overflow[i]; n > 0 {
			dimColor.Fprintf(w, "  +%d more\n", n)
		}
	}

	if len(res.Diagnostics) > 0 {
		warnColor.Fprintf(w, "\n%d event(s) skipped:\n", len(res.Diagnostics))
		for _, d := range res.Diagnostics {
			fmt.Fprintf(w, "  %s\n", d.Error())
		}
	}
}
