// Package report exports a month of bookings to an Excel workbook.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"salonbook/internal/config"
	"salonbook/internal/model"
)

type Ledger interface {
	ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
}

// TableSource dumps raw tables for the audit sheets.
type TableSource interface {
	GetTableNames(ctx context.Context) ([]string, error)
	GetTableData(ctx context.Context, tableName string) ([][]any, []string, error)
}

// Summary totals one exported month.
type Summary struct {
	Total     int
	ByStatus  map[model.Status]int
	Revenue   float64
	Deposits  float64
	Employees int
}

type Exporter struct {
	ledger Ledger
	tables TableSource
	logger *zerolog.Logger

	mu      sync.RWMutex
	catalog *config.Catalog
}

func NewExporter(ledger Ledger, catalog *config.Catalog, logger *zerolog.Logger) *Exporter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Exporter{ledger: ledger, catalog: catalog, logger: logger}
}

// SetCatalog swaps the names used for employees and services.
func (e *Exporter) SetCatalog(c *config.Catalog) {
	e.mu.Lock()
	e.catalog = c
	e.mu.Unlock()
}

// IncludeTables adds one sheet per raw table after the booking sheets.
func (e *Exporter) IncludeTables(src TableSource) {
	e.tables = src
}

// Filename is the workbook name of a month, e.g. bookings_2026-03.xlsx.
func Filename(year int, month time.Month) string {
	return fmt.Sprintf("bookings_%04d-%02d.xlsx", year, int(month))
}

// Monthly writes the workbook of year/month to out. Revenue counts active
// and completed bookings only.
func (e *Exporter) Monthly(ctx context.Context, year int, month time.Month, out io.Writer) (*Summary, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	bookings, err := e.ledger.ListBookings(ctx, model.BookingFilter{FromDate: from, ToDate: to})
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	sort.SliceStable(bookings, func(i, j int) bool { return bookings[i].StartTime.Before(bookings[j].StartTime) })

	e.mu.RLock()
	catalog := e.catalog
	e.mu.RUnlock()

	w := newSheetWriter()
	defer w.close()

	sum := &Summary{ByStatus: make(map[model.Status]int)}
	type employeeTotals struct {
		name              string
		booked, cancelled int
		revenue           float64
	}
	perEmployee := make(map[int64]*employeeTotals)

	if err := w.addSheet("Bookings"); err != nil {
		return nil, err
	}
	if err := w.header("Reference", "Date", "Start", "End", "Employee", "Service", "Client ID",
		"Status", "Quantity", "Price", "Deposit", "Paid", "Notes"); err != nil {
		return nil, err
	}

	for _, b := range bookings {
		employee, service, price, deposit := names(catalog, b)
		amount := price * float64(b.Quantity)
		dep := deposit * float64(b.Quantity)

		if err := w.write([]any{
			b.Reference,
			model.FormatDate(b.Date),
			model.FormatClock(b.StartTime),
			model.FormatClock(b.EndTime),
			employee,
			service,
			b.ClientID,
			string(b.Status),
			b.Quantity,
			amount,
			dep,
			b.Paid,
			b.Notes,
		}); err != nil {
			return nil, err
		}

		sum.Total++
		sum.ByStatus[b.Status]++
		t := perEmployee[b.EmployeeID]
		if t == nil {
			t = &employeeTotals{name: employee}
			perEmployee[b.EmployeeID] = t
		}
		if b.Status == model.StatusCancelled {
			t.cancelled++
			continue
		}
		t.booked++
		if b.Status == model.StatusActive || b.Status == model.StatusCompleted {
			sum.Revenue += amount
			sum.Deposits += dep
			t.revenue += amount
		}
	}
	sum.Employees = len(perEmployee)

	if err := w.addSheet("By employee"); err != nil {
		return nil, err
	}
	if err := w.header("Employee", "Booked", "Cancelled", "Revenue"); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(perEmployee))
	for id := range perEmployee {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		t := perEmployee[id]
		if err := w.write([]any{t.name, t.booked, t.cancelled, t.revenue}); err != nil {
			return nil, err
		}
	}

	if e.tables != nil {
		if err := e.writeTables(ctx, w); err != nil {
			return nil, err
		}
	}

	if err := w.save(out); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return sum, nil
}

func (e *Exporter) writeTables(ctx context.Context, w *sheetWriter) error {
	tables, err := e.tables.GetTableNames(ctx)
	if err != nil {
		return fmt.Errorf("get table names: %w", err)
	}
	for _, name := range tables {
		rows, columns, err := e.tables.GetTableData(ctx, name)
		if err != nil {
			return fmt.Errorf("read table %s: %w", name, err)
		}
		if err := w.addSheet("table " + name); err != nil {
			return err
		}
		if err := w.header(columns...); err != nil {
			return err
		}
		for _, row := range rows {
			if err := w.write(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteMonthly exports year/month into dir and returns the file path.
func (e *Exporter) WriteMonthly(ctx context.Context, dir string, year int, month time.Month) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	path := filepath.Join(dir, Filename(year, month))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}

	sum, err := e.Monthly(ctx, year, month, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}

	e.logger.Info().
		Str("path", path).
		Int("bookings", sum.Total).
		Float64("revenue", sum.Revenue).
		Msg("monthly report written")
	return path, nil
}

func names(c *config.Catalog, b model.Booking) (employee, service string, price, deposit float64) {
	employee = fmt.Sprintf("#%d", b.EmployeeID)
	service = fmt.Sprintf("#%d", b.ServiceID)
	if c == nil {
		return
	}
	if e := c.GetEmployeeByID(b.EmployeeID); e != nil {
		employee = e.Name
	}
	if s := c.GetServiceByID(b.ServiceID); s != nil {
		service = s.Name
		price = s.Price
		deposit = s.Price * float64(s.DepositPercent) / 100
	}
	return
}

// Scheduler writes the previous month's report shortly after midnight on
// the first of every month.
type Scheduler struct {
	exporter *Exporter
	dir      string
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewScheduler(exporter *Exporter, dir string, logger *zerolog.Logger) *Scheduler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Scheduler{exporter: exporter, dir: dir, logger: logger, now: time.Now}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := nextRun(s.now())
		s.logger.Info().Time("at", next).Msg("next monthly report scheduled")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		prev := s.now().AddDate(0, -1, 0)
		if _, err := s.exporter.WriteMonthly(ctx, s.dir, prev.Year(), prev.Month()); err != nil {
			s.logger.Error().Err(err).Msg("monthly report failed")
		}
	}
}

// nextRun is 00:01 on the first day of the month after now.
func nextRun(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, now.Location())
}
