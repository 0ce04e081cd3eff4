package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gymbook",
			Name:      "booking_submitted_total",
			Help:      "Count of booking submissions by outcome.",
		},
		[]string{"outcome"},
	)

	bookingDecision = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gymbook",
			Name:      "booking_decision_total",
			Help:      "Count of admin decisions over bookings.",
		},
		[]string{"decision"},
	)

	bookingConflict = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gymbook",
			Name:      "booking_conflict_total",
			Help:      "Count of refused requests by conflict kind.",
		},
		[]string{"kind"},
	)

	usageCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gymbook",
			Name:      "usage_cache_total",
			Help:      "Usage report cache lookups by result.",
		},
		[]string{"result"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gymbook",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingSubmitted, bookingDecision, bookingConflict, usageCache, httpDuration)
	})
}

func IncBookingSubmitted(outcome string) {
	bookingSubmitted.WithLabelValues(outcome).Inc()
}

func IncBookingDecision(decision string) {
	bookingDecision.WithLabelValues(decision).Inc()
}

func IncBookingConflict(kind string) {
	bookingConflict.WithLabelValues(kind).Inc()
}

func IncUsageCache(result string) {
	usageCache.WithLabelValues(result).Inc()
}

func ObserveHTTP(method, route, status string, elapsed time.Duration) {
	httpDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}
