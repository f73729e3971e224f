package calendar

import (
	"context"
	"sync"
	"time"
)

// NowPosition places the wall-clock time of now on the grid. The marker is
// visible from FirstHour:00 up to, not including, the end of the LastHour
// row.
func (l Layout) NowPosition(now time.Time) (float64, bool) {
	minutes := float64(now.Hour()*60+now.Minute()) + float64(now.Second())/60
	start := float64(l.FirstHour * 60)
	end := float64((l.LastHour + 1) * 60)
	if minutes < start || minutes >= end {
		return 0, false
	}
	return (minutes - start) / (end - start) * l.Height(), true
}

// NowIndicator recomputes the marker once per interval while the day view
// is shown. Nothing runs between Stop and the next Start.
type NowIndicator struct {
	layout   Layout
	clock    func() time.Time
	interval time.Duration
	onTick   func(offset float64, visible bool)

	mu   sync.Mutex
	stop context.CancelFunc
	done chan struct{}
}

func NewNowIndicator(layout Layout, onTick func(offset float64, visible bool)) *NowIndicator {
	return &NowIndicator{
		layout:   layout,
		clock:    time.Now,
		interval: time.Minute,
		onTick:   onTick,
	}
}

// Start reports the position immediately and then on every tick until Stop
// or ctx ends. Starting a running indicator does nothing.
func (n *NowIndicator) Start(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stop != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	n.stop = cancel
	n.done = make(chan struct{})
	n.tick()

	go func(done chan struct{}) {
		defer close(done)
		defer n.release(done)
		t := time.NewTicker(n.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n.tick()
			}
		}
	}(n.done)
}

// release forgets the run owning done, unless Stop or a newer Start already
// replaced it.
func (n *NowIndicator) release(done chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.done != done {
		return
	}
	n.stop()
	n.stop, n.done = nil, nil
}

// Stop ends the ticker and waits for it to exit.
func (n *NowIndicator) Stop() {
	n.mu.Lock()
	stop, done := n.stop, n.done
	n.stop, n.done = nil, nil
	n.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
}

func (n *NowIndicator) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stop != nil
}

func (n *NowIndicator) tick() {
	offset, ok := n.layout.NowPosition(n.clock())
	n.onTick(offset, ok)
}
