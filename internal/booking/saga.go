package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"salonbook/internal/apperr"
	"salonbook/internal/identity"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
)

// ErrCommitInProgress is returned when Commit is called while a previous
// commit on the same saga has not returned.
var ErrCommitInProgress = errors.New("commit already in progress")

type Stage int

const (
	StageNone Stage = iota
	StageClientResolved
	StageBooked
)

func (s Stage) String() string {
	switch s {
	case StageClientResolved:
		return "client_resolved"
	case StageBooked:
		return "booked"
	default:
		return "none"
	}
}

// Slot is the chosen appointment without the client.
type Slot struct {
	EmployeeID int64
	ServiceID  int64
	Date       string
	StartTime  string
	Quantity   int
	Paid       bool
	Notes      string
}

func (s Slot) request(clientID int64) CreateRequest {
	qty := s.Quantity
	if qty < 1 {
		qty = 1
	}
	return CreateRequest{
		ClientID:   clientID,
		EmployeeID: s.EmployeeID,
		ServiceID:  s.ServiceID,
		Date:       s.Date,
		StartTime:  s.StartTime,
		Quantity:   qty,
		Paid:       s.Paid,
		Notes:      s.Notes,
	}
}

// Outcome records how far a commit got.
type Outcome struct {
	Stage       Stage
	Client      *model.Client
	ClientIsNew bool
	Booking     *model.Booking
}

// Saga resolves the client and then creates the booking, strictly in that
// order. One saga serves one user; overlapping commits are refused.
type Saga struct {
	backend Backend
	mu      sync.Mutex
}

func NewSaga(backend Backend) *Saga {
	return &Saga{backend: backend}
}

// Commit runs both steps. When the booking step fails after the client was
// resolved the error is an *apperr.PartialFailureError wrapping the cause.
func (s *Saga) Commit(ctx context.Context, in identity.Input, slot Slot) (*Outcome, error) {
	if !s.mu.TryLock() {
		return nil, ErrCommitInProgress
	}
	defer s.mu.Unlock()

	out := &Outcome{Stage: StageNone}
	res, err := s.backend.ResolveClient(ctx, in)
	if err != nil {
		metrics.IncSagaOutcome("client_failed")
		return out, fmt.Errorf("resolve client: %w", err)
	}
	out.Stage = StageClientResolved
	out.Client = res.Client
	out.ClientIsNew = res.IsNew

	return s.book(ctx, out, slot)
}

// Resume retries only the booking step for a client resolved by an earlier
// partial commit.
func (s *Saga) Resume(ctx context.Context, partial *apperr.PartialFailureError, slot Slot) (*Outcome, error) {
	if partial == nil || partial.Client == nil {
		return nil, apperr.Invalid("client", "nothing to resume")
	}
	if !s.mu.TryLock() {
		return nil, ErrCommitInProgress
	}
	defer s.mu.Unlock()

	out := &Outcome{Stage: StageClientResolved, Client: partial.Client, ClientIsNew: partial.ClientIsNew}
	return s.book(ctx, out, slot)
}

func (s *Saga) book(ctx context.Context, out *Outcome, slot Slot) (*Outcome, error) {
	b, err := s.backend.CreateBooking(ctx, slot.request(out.Client.ID))
	if err != nil {
		metrics.IncSagaOutcome("partial")
		return out, &apperr.PartialFailureError{Client: out.Client, ClientIsNew: out.ClientIsNew, Err: err}
	}
	metrics.IncSagaOutcome("booked")
	out.Stage = StageBooked
	out.Booking = b
	return out, nil
}
