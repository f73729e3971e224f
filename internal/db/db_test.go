package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/apperr"
	"salonbook/internal/config"
	"salonbook/internal/model"
)

const testCatalog = `
employees:
  - id: 1
    name: Ana Ruiz
    category: hair
    is_active: true
    working_hours:
      - days: [1, 2, 3, 4, 5]
        start_hour: 10
        end_hour: 16
    overrides:
      - date: "2026-03-04"
        start_hour: 12
        end_hour: 14
    blackouts:
      - days: [1]
        start_hour: 12
        end_hour: 13
        reason: lunch
  - id: 2
    name: Bea Costa
    category: nails
    is_active: true
    working_hours:
      - days: [1, 2]
        start_hour: 9
        end_hour: 18
services:
  - id: 10
    name: Haircut
    category: hair
    price: 40
    deposit_percent: 25
    duration_minutes: 60
    is_active: true
  - id: 11
    name: Manicure
    category: nails
    price: 25
    duration_minutes: 30
    is_active: true
`

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	cat, err := config.ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)
	require.NoError(t, database.SyncCatalog(context.Background(), cat))
	return database
}

func newClient(t *testing.T, database *DB, nationalID string) *model.Client {
	t.Helper()
	c := &model.Client{FullName: "Test Client", NationalID: nationalID}
	require.NoError(t, database.CreateClient(context.Background(), c))
	return c
}

func booking(clientID, employeeID int64, date time.Time, startHour, startMin, minutes int) *model.Booking {
	start := model.OnDate(date, startHour, startMin)
	return &model.Booking{
		ClientID:   clientID,
		EmployeeID: employeeID,
		ServiceID:  10,
		Date:       date,
		StartTime:  start,
		EndTime:    start.Add(time.Duration(minutes) * time.Minute),
		Status:     model.StatusActive,
		Quantity:   1,
	}
}

func TestCreateBooking_RejectsOverlap(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	c := newClient(t, database, "A1")

	first := booking(c.ID, 1, monday, 10, 0, 60)
	require.NoError(t, database.CreateBooking(ctx, first))
	assert.NotZero(t, first.ID)
	assert.NotEmpty(t, first.Reference)

	tests := []struct {
		name    string
		b       *model.Booking
		wantErr error
	}{
		{"same start", booking(c.ID, 1, monday, 10, 0, 30), apperr.ErrConflict},
		{"starts inside", booking(c.ID, 1, monday, 10, 30, 60), apperr.ErrConflict},
		{"covers", booking(c.ID, 1, monday, 9, 30, 120), apperr.ErrConflict},
		{"adjacent after", booking(c.ID, 1, monday, 11, 0, 60), nil},
		{"adjacent before", booking(c.ID, 1, monday, 9, 0, 60), nil},
		{"other employee", booking(c.ID, 2, monday, 10, 0, 60), nil},
		{"other date", booking(c.ID, 1, monday.AddDate(0, 0, 1), 10, 0, 60), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := database.CreateBooking(ctx, tt.b)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateBooking_ConcurrentSameSlot(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	c := newClient(t, database, "A1")

	const attempts = 2
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = database.CreateBooking(ctx, booking(c.ID, 1, monday, 14, 0, 60))
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperr.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicts)

	list, err := database.ListBookings(ctx, model.BookingFilter{EmployeeID: 1, Status: model.StatusActive})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCancelBooking(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	c := newClient(t, database, "A1")

	b := booking(c.ID, 1, monday, 10, 0, 60)
	require.NoError(t, database.CreateBooking(ctx, b))

	cancelled, err := database.CancelBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	_, err = database.CancelBooking(ctx, b.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = database.CancelBooking(ctx, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// the released interval can be claimed again
	again := booking(c.ID, 1, monday, 10, 0, 60)
	require.NoError(t, database.CreateBooking(ctx, again))

	completed, err := database.CompleteBooking(ctx, again.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, completed.Status)
	_, err = database.CancelBooking(ctx, again.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// a completed booking still occupies its interval
	err = database.CreateBooking(ctx, booking(c.ID, 1, monday, 10, 30, 30))
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestListBookings_Filters(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	c := newClient(t, database, "A1")

	require.NoError(t, database.CreateBooking(ctx, booking(c.ID, 1, monday, 11, 0, 60)))
	require.NoError(t, database.CreateBooking(ctx, booking(c.ID, 1, monday, 10, 0, 60)))
	require.NoError(t, database.CreateBooking(ctx, booking(c.ID, 2, monday, 10, 0, 60)))
	late := booking(c.ID, 1, monday.AddDate(0, 0, 3), 10, 0, 60)
	late.ServiceID = 11
	require.NoError(t, database.CreateBooking(ctx, late))

	all, err := database.ListBookings(ctx, model.BookingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "10:00", model.FormatClock(all[0].StartTime))
	assert.Equal(t, int64(1), all[0].EmployeeID)

	tests := []struct {
		name   string
		filter model.BookingFilter
		count  int
	}{
		{"date range", model.BookingFilter{FromDate: monday, ToDate: monday}, 3},
		{"employee", model.BookingFilter{EmployeeID: 2}, 1},
		{"service", model.BookingFilter{ServiceID: 11}, 1},
		{"status", model.BookingFilter{Status: model.StatusCancelled}, 0},
		{"open ended", model.BookingFilter{FromDate: monday.AddDate(0, 0, 1)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := database.ListBookings(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.count)
		})
	}

	empty, err := database.ListBookings(ctx, model.BookingFilter{EmployeeID: 42})
	require.NoError(t, err)
	assert.NotNil(t, empty)
}

func TestClients(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	c := &model.Client{FullName: "Ana", Email: "ana@example.com", Phone: "+100", NationalID: "X-1"}
	require.NoError(t, database.CreateClient(ctx, c))

	dup := &model.Client{FullName: "Other", Email: "other@example.com", NationalID: "X-1"}
	assert.ErrorIs(t, database.CreateClient(ctx, dup), apperr.ErrConflict)

	got, err := database.GetClientByNationalID(ctx, "X-1")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "Ana", got.FullName)
	assert.Equal(t, "ana@example.com", got.Email)

	_, err = database.GetClientByNationalID(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRulesFromCatalog(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	rules, err := database.ListWorkingHours(ctx, 1, monday, monday.AddDate(0, 0, 6))
	require.NoError(t, err)
	// five weekdays plus the override
	require.Len(t, rules, 6)
	assert.False(t, rules[0].IsSpecificDate())
	assert.True(t, rules[5].IsSpecificDate())
	assert.Equal(t, "2026-03-04", model.FormatDate(rules[5].Date))

	outside, err := database.ListWorkingHours(ctx, 1, monday.AddDate(0, 1, 0), monday.AddDate(0, 1, 1))
	require.NoError(t, err)
	assert.Len(t, outside, 5)

	require.NoError(t, database.AddBlackout(ctx, &model.BlackoutWindow{EmployeeID: 1, Date: monday, StartHour: 15, EndHour: 16, Reason: "meeting"}))
	blackouts, err := database.ListBlackouts(ctx, 1, monday, monday)
	require.NoError(t, err)
	require.Len(t, blackouts, 2)
	assert.Equal(t, "lunch", blackouts[0].Reason)
	assert.Equal(t, "meeting", blackouts[1].Reason)

	rule := &model.WorkingHoursRule{EmployeeID: 2, Date: monday, StartHour: 11, EndHour: 12}
	require.NoError(t, database.AddWorkingHoursRule(ctx, rule))
	assert.NotZero(t, rule.ID)
}

func TestSyncCatalog_DeactivatesMissing(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	emp, err := database.GetEmployee(ctx, 2)
	require.NoError(t, err)
	assert.True(t, emp.IsActive)

	svc, err := database.GetService(ctx, 10)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, svc.Deposit(), 0.001)

	cat, err := config.ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)
	cat.Employees = cat.Employees[:1]
	require.NoError(t, database.SyncCatalog(ctx, cat))

	emp, err = database.GetEmployee(ctx, 2)
	require.NoError(t, err)
	assert.False(t, emp.IsActive)

	employees, err := database.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, employees, 1)

	services, err := database.ListServices(ctx)
	require.NoError(t, err)
	assert.Len(t, services, 2)

	_, err = database.GetEmployee(ctx, 77)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBackupAndAudit(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	c := newClient(t, database, "A1")
	require.NoError(t, database.CreateBooking(ctx, booking(c.ID, 1, monday, 10, 0, 60)))

	dir := t.TempDir()
	dest := filepath.Join(dir, "snapshot.db")
	require.NoError(t, database.Backup(ctx, dest))
	_, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Error(t, database.Backup(ctx, dest))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(dest, old, old))
	deleted, err := database.CleanupBackups(dir, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	rows, columns, err := database.GetTableData(ctx, "bookings")
	require.NoError(t, err)
	assert.Contains(t, columns, "reference")
	assert.Len(t, rows, 1)

	_, _, err = database.GetTableData(ctx, "sqlite_master")
	assert.Error(t, err)
}
