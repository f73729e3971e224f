package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salonbook/internal/config"
	"salonbook/internal/model"
)

const reportCatalog = `
employees:
  - {id: 1, name: Ana Ruiz, category: hair, is_active: true}
services:
  - {id: 10, name: Haircut, category: hair, price: 40, deposit_percent: 25, duration_minutes: 60, is_active: true}
`

type ledgerFunc func(context.Context, model.BookingFilter) ([]model.Booking, error)

func (f ledgerFunc) ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	return f(ctx, filter)
}

type tables struct{}

func (tables) GetTableNames(context.Context) ([]string, error) { return []string{"clients"}, nil }

func (tables) GetTableData(context.Context, string) ([][]any, []string, error) {
	return [][]any{{int64(1), "Dana"}}, []string{"id", "full_name"}, nil
}

func march(t *testing.T) (*Exporter, *model.BookingFilter) {
	t.Helper()
	cat, err := config.ParseCatalog([]byte(reportCatalog))
	require.NoError(t, err)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	at := func(id int64, hour int, status model.Status) model.Booking {
		start := model.OnDate(day, hour, 0)
		return model.Booking{
			ID: id, Reference: fmt.Sprintf("R%d", id), ClientID: 7, EmployeeID: 1, ServiceID: 10,
			Date: day, StartTime: start, EndTime: start.Add(time.Hour), Status: status, Quantity: 1,
		}
	}

	var seen model.BookingFilter
	ledger := ledgerFunc(func(_ context.Context, f model.BookingFilter) ([]model.Booking, error) {
		seen = f
		return []model.Booking{
			at(2, 12, model.StatusCancelled),
			at(1, 10, model.StatusActive),
			at(3, 14, model.StatusCompleted),
		}, nil
	})
	return NewExporter(ledger, cat, nil), &seen
}

func TestMonthly(t *testing.T) {
	exp, seen := march(t)
	exp.IncludeTables(tables{})

	var buf bytes.Buffer
	sum, err := exp.Monthly(context.Background(), 2026, time.March, &buf)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), seen.FromDate)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), seen.ToDate)

	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.ByStatus[model.StatusCancelled])
	assert.InDelta(t, 80, sum.Revenue, 0.001)
	assert.InDelta(t, 20, sum.Deposits, 0.001)
	assert.Equal(t, 1, sum.Employees)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Bookings", "By employee", "table clients"}, f.GetSheetList())

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Reference", rows[0][0])
	assert.Equal(t, []string{"R1", "2026-03-02", "10:00", "11:00", "Ana Ruiz", "Haircut"}, rows[1][:6])
	assert.Equal(t, "CANCELLED", rows[2][7])

	summary, err := f.GetRows("By employee")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana Ruiz", "2", "1", "80"}, summary[1])

	raw, err := f.GetRows("table clients")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "Dana"}, raw[1])
}

func TestWriteMonthly(t *testing.T) {
	exp, _ := march(t)
	dir := filepath.Join(t.TempDir(), "reports")

	path, err := exp.WriteMonthly(context.Background(), dir, 2026, time.March)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bookings_2026-03.xlsx"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestNextRun(t *testing.T) {
	now := time.Date(2026, 12, 15, 13, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 1, 0, 0, time.UTC), nextRun(now))
}
