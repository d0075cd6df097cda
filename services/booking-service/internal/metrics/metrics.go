package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bookease"

var (
	once sync.Once

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Booking attempts by outcome.",
		},
		[]string{"outcome"},
	)

	bookingConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Rejected bookings by the layer that caught the overlap.",
		},
		[]string{"stage"},
	)

	bookingsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_cancelled_total",
			Help:      "Bookings cancelled by owners.",
		},
	)

	resolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "availability_resolve_duration_seconds",
			Help:      "Time spent resolving availability, including store reads.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"kind"},
	)

	outboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox events relayed to Kafka.",
		},
		[]string{"event_type"},
	)

	housekeepingPruned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "housekeeping_pruned_rows_total",
			Help:      "Rows removed by housekeeping jobs.",
		},
		[]string{"table"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingsCreated, bookingConflicts, bookingsCancelled, resolveDuration, outboxPublished, housekeepingPruned)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func IncBookingCreated(outcome string) {
	bookingsCreated.WithLabelValues(outcome).Inc()
}

func IncBookingConflict(stage string) {
	bookingConflicts.WithLabelValues(stage).Inc()
}

func IncBookingCancelled() {
	bookingsCancelled.Inc()
}

// ObserveResolve records the time since start under kind ("day" or "month").
func ObserveResolve(kind string, start time.Time) {
	resolveDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func IncOutboxPublished(eventType string) {
	outboxPublished.WithLabelValues(eventType).Inc()
}

func AddPruned(table string, n int64) {
	if n > 0 {
		housekeepingPruned.WithLabelValues(table).Add(float64(n))
	}
}
