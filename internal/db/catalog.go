package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"salonbook/internal/apperr"
	"salonbook/internal/model"
)

// GetEmployee returns an employee by id.
func (db *DB) GetEmployee(ctx context.Context, id int64) (*model.Employee, error) {
	var e model.Employee
	err := db.QueryRowContext(ctx, `
		SELECT id, name, category, is_active, created_at, updated_at
		FROM employees WHERE id = ?`, id,
	).Scan(&e.ID, &e.Name, &e.Category, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("employee %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEmployees returns active employees ordered by name.
func (db *DB) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, category, is_active, created_at, updated_at
		FROM employees WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Employee
	for rows.Next() {
		var e model.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Category, &e.IsActive, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetService returns a service by id.
func (db *DB) GetService(ctx context.Context, id int64) (*model.Service, error) {
	var s model.Service
	err := db.QueryRowContext(ctx, `
		SELECT id, name, category, price, deposit_percent, duration_minutes, is_active, created_at, updated_at
		FROM services WHERE id = ?`, id,
	).Scan(&s.ID, &s.Name, &s.Category, &s.Price, &s.DepositPercent, &s.DurationMinutes, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("service %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListServices returns active services ordered by name.
func (db *DB) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, category, price, deposit_percent, duration_minutes, is_active, created_at, updated_at
		FROM services WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Category, &s.Price, &s.DepositPercent, &s.DurationMinutes, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
