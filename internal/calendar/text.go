package calendar

import (
	"fmt"
	"strings"
	"time"

	"salonbook/internal/model"
)

// Labeler names a booking in text output.
type Labeler func(b model.Booking) string

func defaultLabel(b model.Booking) string {
	if b.Reference != "" {
		return b.Reference
	}
	return fmt.Sprintf("#%d", b.ID)
}

// RenderDay prints a day grid one column after another. When now falls on
// the grid's date and inside the visible rows a marker line is placed among
// the blocks.
func RenderDay(g *Grid, label Labeler, now time.Time) string {
	if label == nil {
		label = defaultLabel
	}
	var sb strings.Builder
	if len(g.Columns) == 0 {
		return "No bookings.\n"
	}
	fmt.Fprintf(&sb, "%s\n", g.Columns[0].Date.Format("Monday 02 January 2006"))

	offset, showNow := g.Layout.NowPosition(now)
	showNow = showNow && model.FormatDate(now) == model.FormatDate(g.Columns[0].Date)

	for _, c := range g.Columns {
		fmt.Fprintf(&sb, "\n%s\n", c.Label)
		blocks := c.Blocks(g.Layout)
		marked := !showNow
		for _, blk := range blocks {
			if !marked && blk.Top > offset {
				fmt.Fprintf(&sb, "  ── now %s ──\n", model.FormatClock(now))
				marked = true
			}
			b := blk.Booking
			fmt.Fprintf(&sb, "  %s-%s  %s\n", model.FormatClock(b.StartTime), model.FormatClock(b.EndTime), label(b))
		}
		if !marked {
			fmt.Fprintf(&sb, "  ── now %s ──\n", model.FormatClock(now))
		}
		if len(blocks) == 0 {
			sb.WriteString("  free\n")
		}
	}
	return sb.String()
}

// RenderWeek prints one line per booking grouped by date column.
func RenderWeek(g *Grid, label Labeler) string {
	if label == nil {
		label = defaultLabel
	}
	var sb strings.Builder
	for _, c := range g.Columns {
		fmt.Fprintf(&sb, "%s\n", c.Date.Format("Mon 02 Jan"))
		blocks := c.Blocks(g.Layout)
		if len(blocks) == 0 {
			sb.WriteString("  -\n")
		}
		for _, blk := range blocks {
			b := blk.Booking
			fmt.Fprintf(&sb, "  %s-%s  employee %d  %s\n",
				model.FormatClock(b.StartTime), model.FormatClock(b.EndTime), b.EmployeeID, label(b))
		}
	}
	return sb.String()
}

// RenderMonth prints the month grid with the booking count of each day and
// "+N" for days over the cell limit.
func RenderMonth(m *Month) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %d\n", m.Month, m.Year)
	sb.WriteString(" Mo    Tu    We    Th    Fr    Sa    Su\n")
	for _, week := range m.Weeks {
		for i, c := range week {
			if i > 0 {
				sb.WriteByte(' ')
			}
			if !c.InMonth {
				sb.WriteString("     ")
				continue
			}
			cell := fmt.Sprintf("%2d", c.Date.Day())
			if n := len(c.Entries); n > 0 {
				cell += fmt.Sprintf(":%d", n)
			}
			cell += c.OverflowLabel()
			fmt.Fprintf(&sb, "%-5s", cell)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
