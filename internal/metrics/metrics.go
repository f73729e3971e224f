package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salonbook",
			Name:      "booking_created_total",
			Help:      "Count of bookings created by status.",
		},
		[]string{"status"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "salonbook",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled.",
		},
	)

	bookingConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salonbook",
			Name:      "booking_conflict_total",
			Help:      "Count of rejected booking attempts by the layer that detected the clash.",
		},
		[]string{"source"},
	)

	sagaOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salonbook",
			Name:      "saga_outcome_total",
			Help:      "Count of client+booking commits by outcome.",
		},
		[]string{"outcome"},
	)

	clientsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salonbook",
			Name:      "client_resolved_total",
			Help:      "Count of client identity resolutions.",
		},
		[]string{"result"},
	)

	availabilityDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "salonbook",
			Name:      "availability_resolve_seconds",
			Help:      "Latency of availability resolution.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated,
			bookingCancelled,
			bookingConflicts,
			sagaOutcomes,
			clientsResolved,
			availabilityDuration,
		)
	})
}

func IncBookingCreated(status string) {
	bookingCreated.WithLabelValues(status).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func IncConflict(source string) {
	bookingConflicts.WithLabelValues(source).Inc()
}

func IncSagaOutcome(outcome string) {
	sagaOutcomes.WithLabelValues(outcome).Inc()
}

func IncClientResolved(isNew bool) {
	result := "existing"
	if isNew {
		result = "new"
	}
	clientsResolved.WithLabelValues(result).Inc()
}

func ObserveAvailability(d time.Duration) {
	availabilityDuration.Observe(d.Seconds())
}
