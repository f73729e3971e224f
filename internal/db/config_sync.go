package db

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/config"
)

// SyncCatalog applies catalog.yaml to the database. Employees and services
// are upserted, missing ones are deactivated, and each employee's rules and
// blackouts are replaced by the configured set in one transaction.
func (db *DB) SyncCatalog(ctx context.Context, cfg *config.Catalog) error {
	if cfg == nil {
		return fmt.Errorf("catalog is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `UPDATE employees SET is_active = 0, updated_at = ?`, now); err != nil {
		return fmt.Errorf("reset employees: %w", err)
	}
	for i := range cfg.Employees {
		e := &cfg.Employees[i]
		// Preserve created_at if the employee already exists.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO employees (id, name, category, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				category = excluded.category,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			e.ID, e.Name, e.Category, e.IsActive, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync employee %d: %w", e.ID, err)
		}

		rules, err := cfg.WorkingHoursRules(e)
		if err != nil {
			return fmt.Errorf("employee %d hours: %w", e.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM working_hours_rules WHERE employee_id = ?`, e.ID); err != nil {
			return err
		}
		for _, r := range rules {
			day, date := target(r.DayOfWeek, r.Date)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO working_hours_rules (employee_id, day_of_week, date, start_hour, end_hour)
				VALUES (?, ?, ?, ?, ?)`, e.ID, day, date, r.StartHour, r.EndHour); err != nil {
				return fmt.Errorf("employee %d rule: %w", e.ID, err)
			}
		}

		blackouts, err := cfg.Blackouts(e)
		if err != nil {
			return fmt.Errorf("employee %d blackouts: %w", e.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM blackout_windows WHERE employee_id = ?`, e.ID); err != nil {
			return err
		}
		for _, b := range blackouts {
			day, date := target(b.DayOfWeek, b.Date)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO blackout_windows (employee_id, day_of_week, date, start_hour, end_hour, reason)
				VALUES (?, ?, ?, ?, ?, ?)`, e.ID, day, date, b.StartHour, b.EndHour, nullString(b.Reason)); err != nil {
				return fmt.Errorf("employee %d blackout: %w", e.ID, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE services SET is_active = 0, updated_at = ?`, now); err != nil {
		return fmt.Errorf("reset services: %w", err)
	}
	for _, s := range cfg.Services {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO services (id, name, category, price, deposit_percent, duration_minutes, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				category = excluded.category,
				price = excluded.price,
				deposit_percent = excluded.deposit_percent,
				duration_minutes = excluded.duration_minutes,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			s.ID, s.Name, s.Category, s.Price, s.DepositPercent, s.DurationMinutes, s.IsActive, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync service %d: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog: %w", err)
	}

	db.logger.Info().Str("catalog", cfg.String()).Msg("catalog synced")
	return nil
}
