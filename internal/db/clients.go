package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/apperr"
	"salonbook/internal/model"
)

// GetClientByNationalID looks a client up by the unique national id.
func (db *DB) GetClientByNationalID(ctx context.Context, nationalID string) (*model.Client, error) {
	var c model.Client
	var email, phone, notes sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, full_name, email, phone, national_id, notes, created_at
		FROM clients WHERE national_id = ?`, nationalID,
	).Scan(&c.ID, &c.FullName, &email, &phone, &c.NationalID, &notes, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", nationalID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	c.Email, c.Phone, c.Notes = email.String, phone.String, notes.String
	return &c, nil
}

// CreateClient inserts c. A national id that already exists reports
// apperr.ErrConflict and leaves the stored record untouched.
func (db *DB) CreateClient(ctx context.Context, c *model.Client) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO clients (full_name, email, phone, national_id, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.FullName, nullString(c.Email), nullString(c.Phone), c.NationalID, nullString(c.Notes), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("client %s: %w", c.NationalID, apperr.ErrConflict)
		}
		return fmt.Errorf("insert client: %w", err)
	}
	c.ID, err = res.LastInsertId()
	c.CreatedAt = now
	return err
}
