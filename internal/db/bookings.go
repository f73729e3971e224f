package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"salonbook/internal/apperr"
	"salonbook/internal/model"
)

const bookingColumns = `id, reference, client_id, employee_id, service_id, date, start_time, end_time,
	status, quantity, paid, notes, created_at, updated_at`

// CreateBooking checks for an overlapping non-cancelled booking of the same
// employee and inserts b in one immediate transaction. The partial unique
// index on (employee_id, date, start_time) backs the check; either path
// reports apperr.ErrConflict.
func (db *DB) CreateBooking(ctx context.Context, b *model.Booking) error {
	if b.Reference == "" {
		b.Reference = uuid.NewString()
	}
	date := model.FormatDate(b.Date)
	start, end := model.FormatClock(b.StartTime), model.FormatClock(b.EndTime)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM bookings
		WHERE employee_id = ? AND date = ?
		  AND status <> 'CANCELLED'
		  AND start_time < ? AND end_time > ?
		LIMIT 1`,
		b.EmployeeID, date, end, start,
	).Scan(&existingID)
	if err == nil {
		return fmt.Errorf("employee %d %s %s-%s overlaps booking %d: %w",
			b.EmployeeID, date, start, end, existingID, apperr.ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check overlap: %w", err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (
			reference, client_id, employee_id, service_id, date, start_time, end_time,
			status, quantity, paid, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Reference, b.ClientID, b.EmployeeID, b.ServiceID, date, start, end,
		string(b.Status), b.Quantity, b.Paid, nullString(b.Notes), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("employee %d %s %s: %w", b.EmployeeID, date, start, apperr.ErrConflict)
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("commit: %w", apperr.ErrConflict)
		}
		return fmt.Errorf("commit: %w", err)
	}

	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// GetBooking returns a booking by id.
func (db *DB) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, apperr.ErrNotFound)
	}
	return b, err
}

// CancelBooking moves an ACTIVE or PENDING booking to CANCELLED. Missing
// and already terminal bookings report apperr.ErrNotFound.
func (db *DB) CancelBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return db.closeBooking(ctx, id, model.StatusCancelled)
}

// CompleteBooking moves an ACTIVE or PENDING booking to COMPLETED.
func (db *DB) CompleteBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return db.closeBooking(ctx, id, model.StatusCompleted)
}

func (db *DB) closeBooking(ctx context.Context, id int64, to model.Status) (*model.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	b, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !b.CanCancel() {
		return nil, fmt.Errorf("booking %d is %s: %w", id, b.Status, apperr.ErrNotFound)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		string(to), now, id); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	b.Status = to
	b.UpdatedAt = now
	return b, nil
}

// ListBookings returns bookings matching filter ordered by date and start.
func (db *DB) ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	var where []string
	var args []any
	if !filter.FromDate.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, model.FormatDate(filter.FromDate))
	}
	if !filter.ToDate.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, model.FormatDate(filter.ToDate))
	}
	if filter.EmployeeID != 0 {
		where = append(where, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if filter.ServiceID != 0 {
		where = append(where, "service_id = ?")
		args = append(args, filter.ServiceID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, start_time, employee_id"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	var date, start, end, status string
	var notes sql.NullString
	if err := row.Scan(
		&b.ID, &b.Reference, &b.ClientID, &b.EmployeeID, &b.ServiceID, &date, &start, &end,
		&status, &b.Quantity, &b.Paid, &notes, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if b.Date, err = model.ParseDate(date); err != nil {
		return nil, err
	}
	if b.StartTime, err = model.ParseClock(b.Date, start); err != nil {
		return nil, err
	}
	if b.EndTime, err = model.ParseClock(b.Date, end); err != nil {
		return nil, err
	}
	b.Status = model.Status(status)
	b.Notes = notes.String
	return &b, nil
}
