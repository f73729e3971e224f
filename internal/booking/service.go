// Package booking creates, cancels and lists appointments and runs the
// client-then-booking commit used by the wizard.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"salonbook/internal/apperr"
	"salonbook/internal/availability"
	"salonbook/internal/events"
	"salonbook/internal/identity"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
)

// Backend is everything a front-end needs from the scheduling engine.
// Service implements it in-process and api.Client over HTTP.
type Backend interface {
	GetAvailability(ctx context.Context, q availability.Query) (*availability.Result, error)
	CreateBooking(ctx context.Context, req CreateRequest) (*model.Booking, error)
	CancelBooking(ctx context.Context, id int64) (*model.Booking, error)
	ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
	ResolveClient(ctx context.Context, in identity.Input) (identity.Resolution, error)
}

type Catalog interface {
	GetEmployee(ctx context.Context, id int64) (*model.Employee, error)
	GetService(ctx context.Context, id int64) (*model.Service, error)
}

type Availability interface {
	Resolve(ctx context.Context, q availability.Query) (*availability.Result, error)
	CheckBookable(ctx context.Context, employeeID int64, start, end time.Time) error
}

type ClientResolver interface {
	ResolveOrCreate(ctx context.Context, in identity.Input) (identity.Resolution, error)
}

type Publisher interface {
	Publish(e events.Event)
}

// CreateRequest is the wire shape of a new booking.
type CreateRequest struct {
	ClientID   int64  `json:"clientId"`
	EmployeeID int64  `json:"employeeId"`
	ServiceID  int64  `json:"serviceId"`
	Date       string `json:"date"`
	StartTime  string `json:"startTime"`
	Quantity   int    `json:"quantity"`
	Paid       bool   `json:"paid"`
	Notes      string `json:"notes,omitempty"`
}

type Service struct {
	ledger  Ledger
	guard   *Guard
	catalog Catalog
	avail   Availability
	clients ClientResolver
	bus     Publisher
	initial model.Status
	now     func() time.Time
	logger  *zerolog.Logger
}

func NewService(
	ledger Ledger,
	guard *Guard,
	catalog Catalog,
	avail Availability,
	clients ClientResolver,
	logger *zerolog.Logger,
) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if guard == nil {
		guard = NewGuard(ledger, nil, 0, logger)
	}
	return &Service{
		ledger:  ledger,
		guard:   guard,
		catalog: catalog,
		avail:   avail,
		clients: clients,
		initial: model.StatusActive,
		now:     func() time.Time { return model.WallClock(time.Now()) },
		logger:  logger,
	}
}

// SetPublisher attaches the bus that receives booking events.
func (s *Service) SetPublisher(p Publisher) { s.bus = p }

// SetInitialStatus selects PENDING or ACTIVE for new bookings.
func (s *Service) SetInitialStatus(st model.Status) error {
	if st != model.StatusActive && st != model.StatusPending {
		return fmt.Errorf("initial status must be ACTIVE or PENDING, got %s", st)
	}
	s.initial = st
	return nil
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) GetAvailability(ctx context.Context, q availability.Query) (*availability.Result, error) {
	return s.avail.Resolve(ctx, q)
}

func (s *Service) ResolveClient(ctx context.Context, in identity.Input) (identity.Resolution, error) {
	return s.clients.ResolveOrCreate(ctx, in)
}

// CreateBooking validates req, checks it against working hours and
// blackouts, and inserts it through the guard.
func (s *Service) CreateBooking(ctx context.Context, req CreateRequest) (*model.Booking, error) {
	b, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.guard.Create(ctx, b); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			s.logger.Info().
				Int64("employee_id", b.EmployeeID).
				Str("date", model.FormatDate(b.Date)).
				Str("start", model.FormatClock(b.StartTime)).
				Msg("booking conflict")
			return nil, err
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	metrics.IncBookingCreated(string(b.Status))
	s.publish(events.BookingCreated, b)
	s.logger.Info().
		Int64("booking_id", b.ID).
		Int64("client_id", b.ClientID).
		Int64("employee_id", b.EmployeeID).
		Str("date", model.FormatDate(b.Date)).
		Str("start", model.FormatClock(b.StartTime)).
		Msg("booking created")
	return b, nil
}

func (s *Service) prepare(ctx context.Context, req CreateRequest) (*model.Booking, error) {
	switch {
	case req.ClientID <= 0:
		return nil, apperr.Invalid("clientId", "is required")
	case req.EmployeeID <= 0:
		return nil, apperr.Invalid("employeeId", "is required")
	case req.ServiceID <= 0:
		return nil, apperr.Invalid("serviceId", "is required")
	case req.Quantity < 1:
		return nil, apperr.Invalid("quantity", "must be at least 1")
	}

	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, apperr.Invalid("date", "%v", err)
	}
	start, err := model.ParseClock(date, req.StartTime)
	if err != nil {
		return nil, apperr.Invalid("startTime", "%v", err)
	}
	if !model.IsHalfHour(start) {
		return nil, apperr.Invalid("startTime", "%s must fall on :00 or :30", req.StartTime)
	}
	if start.Before(s.now()) {
		return nil, apperr.Invalid("startTime", "%s %s is in the past", req.Date, req.StartTime)
	}

	svc, err := s.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	if !svc.IsActive {
		return nil, apperr.Invalid("serviceId", "service %d is not offered", svc.ID)
	}
	emp, err := s.catalog.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	if !emp.IsActive {
		return nil, apperr.Invalid("employeeId", "employee %d is not taking bookings", emp.ID)
	}

	end := start.Add(svc.Duration())
	if !model.IsHalfHour(end) || model.DateOf(end) != date {
		return nil, apperr.Invalid("startTime", "%s plus %d minutes does not end on a half hour of the same day",
			req.StartTime, svc.DurationMinutes)
	}
	if err := s.avail.CheckBookable(ctx, emp.ID, start, end); err != nil {
		return nil, err
	}

	return &model.Booking{
		ClientID:   req.ClientID,
		EmployeeID: emp.ID,
		ServiceID:  svc.ID,
		Date:       date,
		StartTime:  start,
		EndTime:    end,
		Status:     s.initial,
		Quantity:   req.Quantity,
		Paid:       req.Paid,
		Notes:      req.Notes,
	}, nil
}

// CancelBooking moves an open booking to CANCELLED. Missing or already
// closed bookings report apperr.ErrNotFound.
func (s *Service) CancelBooking(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := s.ledger.CancelBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cancel booking %d: %w", id, err)
	}
	metrics.IncBookingCancelled()
	s.publish(events.BookingCancelled, b)
	s.logger.Info().Int64("booking_id", id).Msg("booking cancelled")
	return b, nil
}

// CompleteBooking moves an open booking to COMPLETED.
func (s *Service) CompleteBooking(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := s.ledger.CompleteBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("complete booking %d: %w", id, err)
	}
	s.publish(events.BookingCompleted, b)
	return b, nil
}

func (s *Service) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return s.ledger.GetBooking(ctx, id)
}

func (s *Service) ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	if !filter.FromDate.IsZero() && !filter.ToDate.IsZero() && filter.ToDate.Before(filter.FromDate) {
		return nil, apperr.Invalid("toDate", "must not be before fromDate")
	}
	return s.ledger.ListBookings(ctx, filter)
}

func (s *Service) publish(eventType string, b *model.Booking) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:       eventType,
		BookingID:  b.ID,
		EmployeeID: b.EmployeeID,
		Date:       b.Date,
	})
}
