package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salonbook/internal/model"
)

// ListWorkingHours returns every recurring rule of the employee plus the
// specific-date rules inside [from, to].
func (db *DB) ListWorkingHours(ctx context.Context, employeeID int64, from, to time.Time) ([]model.WorkingHoursRule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, employee_id, day_of_week, date, start_hour, end_hour
		FROM working_hours_rules
		WHERE employee_id = ?
		  AND (date IS NULL OR (date >= ? AND date <= ?))
		ORDER BY date IS NOT NULL, day_of_week, date, start_hour`,
		employeeID, model.FormatDate(from), model.FormatDate(to),
	)
	if err != nil {
		return nil, fmt.Errorf("query working hours: %w", err)
	}
	defer rows.Close()

	var out []model.WorkingHoursRule
	for rows.Next() {
		var r model.WorkingHoursRule
		var day sql.NullInt64
		var date sql.NullString
		if err := rows.Scan(&r.ID, &r.EmployeeID, &day, &date, &r.StartHour, &r.EndHour); err != nil {
			return nil, err
		}
		if err := fillTarget(day, date, &r.DayOfWeek, &r.Date); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListBlackouts mirrors ListWorkingHours for blackout windows.
func (db *DB) ListBlackouts(ctx context.Context, employeeID int64, from, to time.Time) ([]model.BlackoutWindow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, employee_id, day_of_week, date, start_hour, end_hour, reason
		FROM blackout_windows
		WHERE employee_id = ?
		  AND (date IS NULL OR (date >= ? AND date <= ?))
		ORDER BY date IS NOT NULL, day_of_week, date, start_hour`,
		employeeID, model.FormatDate(from), model.FormatDate(to),
	)
	if err != nil {
		return nil, fmt.Errorf("query blackouts: %w", err)
	}
	defer rows.Close()

	var out []model.BlackoutWindow
	for rows.Next() {
		var b model.BlackoutWindow
		var day sql.NullInt64
		var date, reason sql.NullString
		if err := rows.Scan(&b.ID, &b.EmployeeID, &day, &date, &b.StartHour, &b.EndHour, &reason); err != nil {
			return nil, err
		}
		if err := fillTarget(day, date, &b.DayOfWeek, &b.Date); err != nil {
			return nil, err
		}
		b.Reason = reason.String
		out = append(out, b)
	}
	return out, rows.Err()
}

// AddWorkingHoursRule stores a recurring or specific-date rule.
func (db *DB) AddWorkingHoursRule(ctx context.Context, r *model.WorkingHoursRule) error {
	day, date := target(r.DayOfWeek, r.Date)
	res, err := db.ExecContext(ctx, `
		INSERT INTO working_hours_rules (employee_id, day_of_week, date, start_hour, end_hour)
		VALUES (?, ?, ?, ?, ?)`,
		r.EmployeeID, day, date, r.StartHour, r.EndHour,
	)
	if err != nil {
		return fmt.Errorf("insert working hours: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

// AddBlackout stores a recurring or specific-date blackout.
func (db *DB) AddBlackout(ctx context.Context, b *model.BlackoutWindow) error {
	day, date := target(b.DayOfWeek, b.Date)
	res, err := db.ExecContext(ctx, `
		INSERT INTO blackout_windows (employee_id, day_of_week, date, start_hour, end_hour, reason)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.EmployeeID, day, date, b.StartHour, b.EndHour, nullString(b.Reason),
	)
	if err != nil {
		return fmt.Errorf("insert blackout: %w", err)
	}
	b.ID, err = res.LastInsertId()
	return err
}

func target(day int, date time.Time) (sql.NullInt64, sql.NullString) {
	if !date.IsZero() {
		return sql.NullInt64{}, sql.NullString{String: model.FormatDate(date), Valid: true}
	}
	return sql.NullInt64{Int64: int64(day), Valid: true}, sql.NullString{}
}

func fillTarget(day sql.NullInt64, date sql.NullString, dayOut *int, dateOut *time.Time) error {
	if date.Valid {
		d, err := model.ParseDate(date.String)
		if err != nil {
			return err
		}
		*dateOut = d
		return nil
	}
	*dayOut = int(day.Int64)
	return nil
}
