// Package metrics provides Prometheus metrics for note continuation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ContinuationsTotal counts finished continuation requests.
	// Labels: state (already_complete, completed, exhausted, aborted)
	ContinuationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notesd",
			Subsystem: "continuation",
			Name:      "requests_total",
			Help:      "Total number of continuation requests by final state",
		},
		[]string{"state"},
	)

	// ContinuationAttempts observes how many model calls one request made.
	ContinuationAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "notesd",
			Subsystem: "continuation",
			Name:      "attempts",
			Help:      "Number of completion calls per continuation request",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8},
		},
	)

	// ContinuationDuration tracks wall-clock time per request.
	ContinuationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "notesd",
			Subsystem: "continuation",
			Name:      "duration_seconds",
			Help:      "Duration of continuation requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// SoftFailuresTotal counts attempts that were absorbed by the loop.
	// Labels: reason (malformed_output, empty_continuation)
	SoftFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notesd",
			Subsystem: "continuation",
			Name:      "soft_failures_total",
			Help:      "Total number of absorbed per-attempt failures",
		},
		[]string{"reason"},
	)

	// GatewayErrorsTotal counts hard completion-service failures.
	// Labels: kind (rate_limited, quota_exceeded, unclassified)
	GatewayErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notesd",
			Subsystem: "generation",
			Name:      "errors_total",
			Help:      "Total number of completion service errors by kind",
		},
		[]string{"kind"},
	)

	// CoverageScore observes coverage estimates returned to callers.
	CoverageScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "notesd",
			Subsystem: "coverage",
			Name:      "score",
			Help:      "Distribution of source coverage scores (0-100)",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		},
	)

	// VersionConflictsTotal counts rejected stale writes.
	VersionConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "notesd",
			Subsystem: "store",
			Name:      "version_conflicts_total",
			Help:      "Total number of document saves rejected for a stale version",
		},
	)

	// EventsPublishedTotal counts published notes events.
	// Labels: result (success, error)
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notesd",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of notes events published",
		},
		[]string{"result"},
	)
)
