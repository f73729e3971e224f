package wizard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/availability"
)

type delivery struct {
	query availability.Query
	res   *availability.Result
	err   error
}

func collector() (func(availability.Query, *availability.Result, error), func() []delivery) {
	var mu sync.Mutex
	var got []delivery
	return func(q availability.Query, r *availability.Result, err error) {
			mu.Lock()
			got = append(got, delivery{q, r, err})
			mu.Unlock()
		}, func() []delivery {
			mu.Lock()
			defer mu.Unlock()
			return append([]delivery(nil), got...)
		}
}

func TestAvailabilityQuery_DebouncesRapidChanges(t *testing.T) {
	var calls atomic.Int32
	fetch := func(_ context.Context, q availability.Query) (*availability.Result, error) {
		calls.Add(1)
		return &availability.Result{}, nil
	}
	deliver, got := collector()
	aq := NewAvailabilityQuery(context.Background(), fetch, 20*time.Millisecond, deliver)
	defer aq.Close()

	for i := int64(1); i <= 5; i++ {
		aq.Set(availability.Query{EmployeeID: i})
	}

	require.Eventually(t, func() bool { return len(got()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(5), got()[0].query.EmployeeID)
}

func TestAvailabilityQuery_DropsSupersededResult(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	fetch := func(ctx context.Context, q availability.Query) (*availability.Result, error) {
		started <- struct{}{}
		if q.EmployeeID == 1 {
			// The slow first request ignores cancellation and answers late.
			<-release
		}
		return &availability.Result{}, nil
	}
	deliver, got := collector()
	aq := NewAvailabilityQuery(context.Background(), fetch, time.Millisecond, deliver)
	defer aq.Close()

	aq.Set(availability.Query{EmployeeID: 1})
	<-started
	aq.Set(availability.Query{EmployeeID: 2})

	require.Eventually(t, func() bool { return len(got()) == 1 }, time.Second, 5*time.Millisecond)
	close(release)
	time.Sleep(30 * time.Millisecond)

	deliveries := got()
	require.Len(t, deliveries, 1)
	assert.Equal(t, int64(2), deliveries[0].query.EmployeeID)
}

func TestAvailabilityQuery_CancelsInFlight(t *testing.T) {
	cancelled := make(chan struct{})
	started := make(chan struct{}, 2)
	fetch := func(ctx context.Context, q availability.Query) (*availability.Result, error) {
		started <- struct{}{}
		if q.EmployeeID == 1 {
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		}
		return &availability.Result{}, nil
	}
	deliver, _ := collector()
	aq := NewAvailabilityQuery(context.Background(), fetch, time.Millisecond, deliver)
	defer aq.Close()

	aq.Set(availability.Query{EmployeeID: 1})
	<-started
	aq.Set(availability.Query{EmployeeID: 2})

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("in-flight request was not cancelled")
	}
}

func TestAvailabilityQuery_CloseIgnoresLateResults(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	fetch := func(context.Context, availability.Query) (*availability.Result, error) {
		started <- struct{}{}
		<-release
		return &availability.Result{}, nil
	}
	deliver, got := collector()
	aq := NewAvailabilityQuery(context.Background(), fetch, time.Millisecond, deliver)

	aq.Set(availability.Query{EmployeeID: 1})
	<-started
	aq.Close()
	close(release)
	time.Sleep(30 * time.Millisecond)

	assert.Empty(t, got())

	aq.Set(availability.Query{EmployeeID: 2})
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, got(), "Set after Close is a no-op")
}
