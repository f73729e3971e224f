package wizard

import (
	"context"
	"sync"
	"time"

	"salonbook/internal/availability"
)

// DefaultDebounce is the quiet period before an availability request fires.
const DefaultDebounce = 300 * time.Millisecond

type Fetcher func(ctx context.Context, q availability.Query) (*availability.Result, error)

// AvailabilityQuery debounces availability requests. Only the latest request
// is delivered: a newer Set cancels the in-flight fetch and any result that
// still arrives for it is dropped, as is anything arriving after Close.
type AvailabilityQuery struct {
	fetch   Fetcher
	delay   time.Duration
	deliver func(availability.Query, *availability.Result, error)
	parent  context.Context

	mu     sync.Mutex
	seq    uint64
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool
}

func NewAvailabilityQuery(
	ctx context.Context,
	fetch Fetcher,
	delay time.Duration,
	deliver func(availability.Query, *availability.Result, error),
) *AvailabilityQuery {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &AvailabilityQuery{fetch: fetch, delay: delay, deliver: deliver, parent: ctx}
}

// Set schedules q, superseding whatever was pending or in flight.
func (a *AvailabilityQuery) Set(q availability.Query) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	a.seq++
	seq := a.seq
	a.stopLocked()
	a.timer = time.AfterFunc(a.delay, func() { a.run(seq, q) })
}

func (a *AvailabilityQuery) run(seq uint64, q availability.Query) {
	a.mu.Lock()
	if a.closed || seq != a.seq {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(a.parent)
	a.cancel = cancel
	a.mu.Unlock()

	res, err := a.fetch(ctx, q)
	cancel()

	a.mu.Lock()
	current := !a.closed && seq == a.seq
	a.mu.Unlock()
	if current {
		a.deliver(q, res, err)
	}
}

// Close stops pending work; late results are ignored.
func (a *AvailabilityQuery) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.stopLocked()
}

func (a *AvailabilityQuery) stopLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}
