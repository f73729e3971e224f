// Package events is the in-process bus that tells views a booking changed.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	BookingCreated   = "booking.created"
	BookingCancelled = "booking.cancelled"
	BookingCompleted = "booking.completed"
)

// Event carries enough to know which range of a calendar is stale.
type Event struct {
	Type       string
	BookingID  int64
	EmployeeID int64
	Date       time.Time
	CreatedAt  time.Time
}

type Handler func(Event) error

// Bus delivers events synchronously in subscription order.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[int]Handler
	order       map[string][]int
	nextID      int
	logger      *zerolog.Logger
}

func NewBus(logger *zerolog.Logger) *Bus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Bus{
		subscribers: make(map[string]map[int]Handler),
		order:       make(map[string][]int),
		logger:      logger,
	}
}

// Subscribe registers h for eventType and returns a func that removes it.
func (b *Bus) Subscribe(eventType string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[int]Handler)
	}
	b.subscribers[eventType][id] = h
	b.order[eventType] = append(b.order[eventType], id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers[eventType], id)
		ids := b.order[eventType]
		for i, v := range ids {
			if v == id {
				b.order[eventType] = append(ids[:i:i], ids[i+1:]...)
				break
			}
		}
	}
}

// Publish runs every handler for e.Type. Handler errors are logged and do
// not stop delivery.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order[e.Type]))
	for _, id := range b.order[e.Type] {
		handlers = append(handlers, b.subscribers[e.Type][id])
	}
	b.mu.RUnlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	for _, h := range handlers {
		if err := h(e); err != nil {
			b.logger.Warn().Err(err).Str("event", e.Type).Int64("booking_id", e.BookingID).Msg("event handler failed")
		}
	}
}
