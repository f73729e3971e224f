package calendar

import (
	"fmt"
	"time"

	"salonbook/internal/model"
)

// Layout fixes the hour rows of the week and day grids. Rows run from
// FirstHour to LastHour inclusive; a booking is shown when it starts in one
// of them.
type Layout struct {
	FirstHour int
	LastHour  int
	RowHeight float64
	Gutter    float64
}

func DefaultLayout() Layout {
	return Layout{FirstHour: 9, LastHour: 17, RowHeight: 48, Gutter: 4}
}

// Hours lists the row labels.
func (l Layout) Hours() []int {
	hours := make([]int, 0, l.LastHour-l.FirstHour+1)
	for h := l.FirstHour; h <= l.LastHour; h++ {
		hours = append(hours, h)
	}
	return hours
}

// Height is the total height of all rows.
func (l Layout) Height() float64 {
	return float64(l.LastHour-l.FirstHour+1) * l.RowHeight
}

// Block is a booking placed on the grid. Top is measured from the top of
// the grid; Offset is the part of it inside the start-hour row.
type Block struct {
	Booking model.Booking
	Hour    int
	Offset  float64
	Top     float64
	Height  float64
}

// Column is one date (week view) or one employee (day view).
type Column struct {
	Label      string
	Date       time.Time
	EmployeeID int64
	// Rows maps a start hour to the blocks anchored in that row.
	Rows map[int][]Block
}

// Blocks returns the column's blocks in row order.
func (c Column) Blocks(l Layout) []Block {
	var out []Block
	for _, h := range l.Hours() {
		out = append(out, c.Rows[h]...)
	}
	return out
}

type Grid struct {
	Layout  Layout
	Columns []Column
}

// WeekView lays out seven date columns starting at weekStart.
func WeekView(bookings []model.Booking, weekStart time.Time, layout Layout) *Grid {
	g := &Grid{Layout: layout}
	byDate := groupByDate(bookings)
	start := model.DateOf(weekStart)
	for i := 0; i < 7; i++ {
		d := start.AddDate(0, 0, i)
		col := Column{Label: d.Format("Mon 02"), Date: d, Rows: make(map[int][]Block)}
		for _, b := range byDate[model.FormatDate(d)] {
			layout.place(&col, b)
		}
		g.Columns = append(g.Columns, col)
	}
	return g
}

// DayView lays out one column per employee for date. Bookings of employees
// not listed get a column of their own after the listed ones.
func DayView(bookings []model.Booking, date time.Time, employees []model.Employee, layout Layout) *Grid {
	g := &Grid{Layout: layout}
	day := model.DateOf(date)
	index := make(map[int64]int, len(employees))
	for _, e := range employees {
		index[e.ID] = len(g.Columns)
		g.Columns = append(g.Columns, Column{Label: e.Name, Date: day, EmployeeID: e.ID, Rows: make(map[int][]Block)})
	}

	for _, b := range groupByDate(bookings)[model.FormatDate(day)] {
		i, ok := index[b.EmployeeID]
		if !ok {
			i = len(g.Columns)
			index[b.EmployeeID] = i
			g.Columns = append(g.Columns, Column{
				Label:      fmt.Sprintf("Employee %d", b.EmployeeID),
				Date:       day,
				EmployeeID: b.EmployeeID,
				Rows:       make(map[int][]Block),
			})
		}
		layout.place(&g.Columns[i], b)
	}
	return g
}

// Column returns the column of employeeID in a day grid.
func (g *Grid) Column(employeeID int64) (Column, bool) {
	for _, c := range g.Columns {
		if c.EmployeeID == employeeID {
			return c, true
		}
	}
	return Column{}, false
}

// Block computes the placement of b, false when it starts outside the rows.
func (l Layout) Block(b model.Booking) (Block, bool) {
	h := b.StartTime.Hour()
	if h < l.FirstHour || h > l.LastHour {
		return Block{}, false
	}
	offset := float64(b.StartTime.Minute()) / 60 * l.RowHeight
	height := b.Duration().Hours()*l.RowHeight - l.Gutter
	if height < 0 {
		height = 0
	}
	return Block{
		Booking: b,
		Hour:    h,
		Offset:  offset,
		Top:     float64(h-l.FirstHour)*l.RowHeight + offset,
		Height:  height,
	}, true
}

func (l Layout) place(c *Column, b model.Booking) {
	if blk, ok := l.Block(b); ok {
		c.Rows[blk.Hour] = append(c.Rows[blk.Hour], blk)
	}
}
