package booking

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"salonbook/internal/apperr"
	"salonbook/internal/lock"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
)

// Ledger is the authoritative booking store. CreateBooking must reject an
// overlapping non-cancelled booking of the same employee with
// apperr.ErrConflict atomically with the insert.
type Ledger interface {
	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	CancelBooking(ctx context.Context, id int64) (*model.Booking, error)
	CompleteBooking(ctx context.Context, id int64) (*model.Booking, error)
	ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
}

// Guard serialises creation per slot. The optional lock only sheds
// contention early; the ledger decides.
type Guard struct {
	ledger Ledger
	locker lock.Locker
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewGuard(ledger Ledger, locker lock.Locker, ttl time.Duration, logger *zerolog.Logger) *Guard {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Guard{ledger: ledger, locker: locker, ttl: ttl, logger: logger}
}

// Create inserts b unless its interval clashes with an occupying booking.
func (g *Guard) Create(ctx context.Context, b *model.Booking) error {
	if g.locker != nil {
		key := lock.SlotKey(b.EmployeeID, model.FormatDate(b.Date), model.FormatClock(b.StartTime))
		release, ok, err := g.locker.Lock(ctx, key, g.ttl)
		switch {
		case err != nil:
			// Redis down: the ledger transaction still guards the slot.
			g.logger.Warn().Err(err).Str("key", key).Msg("slot lock unavailable, relying on ledger")
		case !ok:
			metrics.IncConflict("lock")
			return apperr.ErrConflict
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					g.logger.Warn().Err(err).Str("key", key).Msg("slot lock release failed")
				}
			}()
		}
	}

	err := g.ledger.CreateBooking(ctx, b)
	if errors.Is(err, apperr.ErrConflict) {
		metrics.IncConflict("ledger")
	}
	return err
}
