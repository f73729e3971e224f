// Package calendar builds the staff views over the booking ledger: a month
// grid, week and day hour grids and the "now" marker of the day view.
// Every view is recomputed from the full booking set and skips cancelled
// bookings.
package calendar

import (
	"fmt"
	"sort"
	"time"

	"salonbook/internal/model"
)

// MaxCellEntries is how many bookings a month cell lists before overflowing.
const MaxCellEntries = 3

// MonthCell is one day of the month grid.
type MonthCell struct {
	Date    time.Time
	InMonth bool
	Entries []model.Booking
	// Overflow counts bookings not listed in Entries.
	Overflow int
}

// OverflowLabel is "+N", or empty without overflow.
func (c MonthCell) OverflowLabel() string {
	if c.Overflow == 0 {
		return ""
	}
	return fmt.Sprintf("+%d", c.Overflow)
}

// Month is a Monday-first grid covering a whole month.
type Month struct {
	Year  int
	Month time.Month
	Weeks [][7]MonthCell

	byDate map[string][]model.Booking
}

// MonthView groups bookings by date into the grid of year/month. Padding
// cells from the neighbouring months are filled too, with InMonth false.
func MonthView(bookings []model.Booking, year int, month time.Month) *Month {
	m := &Month{Year: year, Month: month, byDate: groupByDate(bookings)}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	day := first.AddDate(0, 0, -(model.DayOfWeek(first) - 1))

	for !day.After(last) {
		var week [7]MonthCell
		for i := range week {
			entries := m.byDate[model.FormatDate(day)]
			cell := MonthCell{Date: day, InMonth: day.Month() == month}
			if len(entries) > MaxCellEntries {
				cell.Entries = entries[:MaxCellEntries]
				cell.Overflow = len(entries) - MaxCellEntries
			} else {
				cell.Entries = entries
			}
			week[i] = cell
			day = day.AddDate(0, 0, 1)
		}
		m.Weeks = append(m.Weeks, week)
	}
	return m
}

// DayList returns every visible booking of date, the list shown when a
// cell is opened.
func (m *Month) DayList(date time.Time) []model.Booking {
	return m.byDate[model.FormatDate(date)]
}

// Cell finds the cell of date in the grid.
func (m *Month) Cell(date time.Time) (MonthCell, bool) {
	want := model.FormatDate(date)
	for _, w := range m.Weeks {
		for _, c := range w {
			if model.FormatDate(c.Date) == want {
				return c, true
			}
		}
	}
	return MonthCell{}, false
}

// visible drops cancelled bookings and sorts by start time, then employee.
func visible(bookings []model.Booking) []model.Booking {
	out := make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Status == model.StatusCancelled {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out
}

func groupByDate(bookings []model.Booking) map[string][]model.Booking {
	out := make(map[string][]model.Booking)
	for _, b := range visible(bookings) {
		key := model.FormatDate(b.Date)
		out[key] = append(out[key], b)
	}
	return out
}
