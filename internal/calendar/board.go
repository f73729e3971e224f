package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"salonbook/internal/events"
	"salonbook/internal/model"
)

type Lister interface {
	ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
}

type Subscriber interface {
	Subscribe(eventType string, h events.Handler) (unsubscribe func())
}

// Board holds the booking set behind the staff calendar. It refetches the
// visible range whenever a booking in it changes.
type Board struct {
	lister  Lister
	logger  *zerolog.Logger
	timeout time.Duration

	mu       sync.RWMutex
	filter   model.BookingFilter
	bookings []model.Booking
	onChange func([]model.Booking)
}

func NewBoard(lister Lister, logger *zerolog.Logger) *Board {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Board{lister: lister, logger: logger, timeout: 10 * time.Second}
}

// OnChange registers fn to run after every successful fetch.
func (b *Board) OnChange(fn func([]model.Booking)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Show switches the visible range and fetches it.
func (b *Board) Show(ctx context.Context, filter model.BookingFilter) error {
	if filter.FromDate.IsZero() || filter.ToDate.IsZero() {
		return fmt.Errorf("show calendar: range is required")
	}
	b.mu.Lock()
	b.filter = filter
	b.mu.Unlock()
	return b.Refresh(ctx)
}

// Refresh refetches the whole visible range. The previous set is kept when
// the fetch fails.
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.RLock()
	filter := b.filter
	b.mu.RUnlock()

	list, err := b.lister.ListBookings(ctx, filter)
	if err != nil {
		return fmt.Errorf("refresh calendar: %w", err)
	}

	b.mu.Lock()
	if b.filter != filter {
		// The range moved while fetching; the newer Show owns the result.
		b.mu.Unlock()
		return nil
	}
	b.bookings = list
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn(list)
	}
	return nil
}

// Attach refetches on booking events that touch the visible range and
// returns a func that detaches the board.
func (b *Board) Attach(bus Subscriber) (detach func()) {
	handler := func(e events.Event) error {
		if !b.covers(e) {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		b.logger.Debug().Str("event", e.Type).Int64("booking_id", e.BookingID).Msg("calendar refresh")
		return b.Refresh(ctx)
	}

	var unsubs []func()
	for _, t := range []string{events.BookingCreated, events.BookingCancelled, events.BookingCompleted} {
		unsubs = append(unsubs, bus.Subscribe(t, handler))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (b *Board) covers(e events.Event) bool {
	b.mu.RLock()
	f := b.filter
	b.mu.RUnlock()
	if f.FromDate.IsZero() {
		return false
	}
	if f.EmployeeID != 0 && e.EmployeeID != 0 && e.EmployeeID != f.EmployeeID {
		return false
	}
	if e.Date.IsZero() {
		return true
	}
	d := model.DateOf(e.Date)
	return !d.Before(model.DateOf(f.FromDate)) && !d.After(model.DateOf(f.ToDate))
}

// Bookings returns a copy of the current set.
func (b *Board) Bookings() []model.Booking {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.Booking, len(b.bookings))
	copy(out, b.bookings)
	return out
}

func (b *Board) Month(year int, month time.Month) *Month {
	return MonthView(b.Bookings(), year, month)
}

func (b *Board) Week(weekStart time.Time, layout Layout) *Grid {
	return WeekView(b.Bookings(), weekStart, layout)
}

func (b *Board) Day(date time.Time, employees []model.Employee, layout Layout) *Grid {
	return DayView(b.Bookings(), date, employees, layout)
}

// MonthRange is the first and last date of a month.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// WeekStart is the Monday on or before date.
func WeekStart(date time.Time) time.Time {
	d := model.DateOf(date)
	return d.AddDate(0, 0, -(model.DayOfWeek(d) - 1))
}
