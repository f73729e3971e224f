// Package identity resolves a client record by national id, creating it on
// first use.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"salonbook/internal/apperr"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
)

// Store persists clients. CreateClient reports apperr.ErrConflict when the
// national id already exists; GetClientByNationalID reports apperr.ErrNotFound.
type Store interface {
	GetClientByNationalID(ctx context.Context, nationalID string) (*model.Client, error)
	CreateClient(ctx context.Context, c *model.Client) error
}

type Input struct {
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	NationalID string `json:"nationalId"`
	Notes      string `json:"notes,omitempty"`
}

type Resolution struct {
	Client *model.Client `json:"client"`
	IsNew  bool          `json:"isNew"`
}

// Validate normalises in place and rejects incomplete input. It never
// touches the store.
func (in *Input) Validate() error {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Notes = strings.TrimSpace(in.Notes)
	in.NationalID = NormalizeNationalID(in.NationalID)

	if in.NationalID == "" {
		return apperr.Invalid("nationalId", "is required")
	}
	if in.FullName == "" {
		return apperr.Invalid("fullName", "is required")
	}
	if in.Email != "" && !ValidEmail(in.Email) {
		return apperr.Invalid("email", "%q is not a valid address", in.Email)
	}
	if in.Phone != "" {
		phone, ok := NormalizePhone(in.Phone)
		if !ok {
			return apperr.Invalid("phone", "%q is not a valid phone number", in.Phone)
		}
		in.Phone = phone
	}
	return nil
}

type Resolver struct {
	store  Store
	logger *zerolog.Logger
}

func NewResolver(store Store, logger *zerolog.Logger) *Resolver {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Resolver{store: store, logger: logger}
}

// ResolveOrCreate returns the stored client for the national id unchanged,
// or creates one. A concurrent insert of the same id is resolved by reading
// the winner back.
func (r *Resolver) ResolveOrCreate(ctx context.Context, in Input) (Resolution, error) {
	if err := in.Validate(); err != nil {
		return Resolution{}, err
	}

	existing, err := r.store.GetClientByNationalID(ctx, in.NationalID)
	if err == nil {
		metrics.IncClientResolved(false)
		return Resolution{Client: existing, IsNew: false}, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return Resolution{}, fmt.Errorf("lookup client: %w", err)
	}

	client := &model.Client{
		FullName:   in.FullName,
		Email:      in.Email,
		Phone:      in.Phone,
		NationalID: in.NationalID,
		Notes:      in.Notes,
	}
	err = r.store.CreateClient(ctx, client)
	if errors.Is(err, apperr.ErrConflict) {
		existing, err := r.store.GetClientByNationalID(ctx, in.NationalID)
		if err != nil {
			return Resolution{}, fmt.Errorf("reread client: %w", err)
		}
		metrics.IncClientResolved(false)
		return Resolution{Client: existing, IsNew: false}, nil
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("create client: %w", err)
	}

	r.logger.Info().Int64("client_id", client.ID).Msg("client created")
	metrics.IncClientResolved(true)
	return Resolution{Client: client, IsNew: true}, nil
}
