// Package observability holds the client's prometheus collectors and tracing setup.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	apiRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sia",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Calls to the activity service grouped by operation and outcome.",
	}, []string{"operation", "outcome"})

	apiLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sia",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "Latency of calls to the activity service.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sia",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Query cache lookups grouped by entity kind and result (hit, miss, stale).",
	}, []string{"kind", "result"})

	cacheInvalidations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sia",
		Subsystem: "cache",
		Name:      "invalidations_total",
		Help:      "Entries marked stale, grouped by entity kind.",
	}, []string{"kind"})

	progressEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sia",
		Subsystem: "session",
		Name:      "events_total",
		Help:      "Activity progression events observed by the controller.",
	}, []string{"event"})
)

func init() {
	prometheus.MustRegister(apiRequests, apiLatency, cacheLookups, cacheInvalidations, progressEvents)
}

// Outcome labels for RecordRequest.
const (
	OutcomeOK         = "ok"
	OutcomeNotFound   = "not_found"
	OutcomeStatus     = "status_error"
	OutcomeTransport  = "transport_error"
	OutcomeValidation = "validation_error"
)

// RecordRequest counts one API call and its latency.
func RecordRequest(operation, outcome string, elapsed time.Duration) {
	apiRequests.WithLabelValues(operation, outcome).Inc()
	apiLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordCacheLookup counts a cache lookup result.
func RecordCacheLookup(kind, result string) {
	cacheLookups.WithLabelValues(kind, result).Inc()
}

// RecordInvalidation counts entries marked stale.
func RecordInvalidation(kind string, n int) {
	if n <= 0 {
		return
	}
	cacheInvalidations.WithLabelValues(kind).Add(float64(n))
}

// RecordProgressEvent counts a progression event (started, answered, completed).
func RecordProgressEvent(event string) {
	progressEvents.WithLabelValues(event).Inc()
}
