// Package metrics provides centralized Prometheus metrics for the audit core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Retry metrics track attempt volume and outcomes per operation.
var (
	// RetryAttemptsTotal counts operation invocations by operation name and outcome.
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of operation attempts made by the retry executor",
		},
		[]string{"operation", "outcome"},
	)

	// RetryExhaustedTotal counts operations that failed after consuming all attempts.
	RetryExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_exhausted_total",
			Help: "Total number of operations that exhausted their retry budget",
		},
		[]string{"operation"},
	)

	// RetryBackoffDuration measures the computed backoff delay in seconds.
	RetryBackoffDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retry_backoff_duration_seconds",
			Help:    "Backoff delay inserted between retry attempts",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"operation"},
	)
)

// Circuit breaker metrics track state transitions and rejected calls.
var (
	// BreakerTransitionsTotal counts state transitions by breaker name.
	BreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"breaker", "from", "to"},
	)

	// BreakerRejectionsTotal counts calls rejected because a breaker was open.
	BreakerRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_rejections_total",
			Help: "Total number of calls rejected by an open circuit breaker",
		},
		[]string{"breaker"},
	)
)

// Fallback metrics track degraded-path usage.
var (
	// FallbackAttemptsTotal counts fallback provider attempts by resource, provider, and outcome.
	FallbackAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_attempts_total",
			Help: "Total number of fallback provider attempts",
		},
		[]string{"resource", "provider", "outcome"},
	)

	// FallbackCacheHitsTotal counts fallback results served from the TTL cache.
	FallbackCacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_cache_hits_total",
			Help: "Total number of fallback results served from cache",
		},
		[]string{"resource"},
	)
)

// Audit orchestration metrics track stage and run outcomes.
var (
	// StageDuration measures wall-clock stage duration in seconds.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_stage_duration_seconds",
			Help:    "Wall-clock duration of audit stages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// StageOutcomesTotal counts settled stages by name and outcome
	// (success, fallback, failed).
	StageOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_stage_outcomes_total",
			Help: "Total number of settled audit stages by outcome",
		},
		[]string{"stage", "outcome"},
	)

	// AuditRunDuration measures full audit run duration in seconds.
	AuditRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_run_duration_seconds",
			Help:    "Wall-clock duration of complete audit runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	// AuditRunsTotal counts completed audit runs by final status.
	AuditRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_runs_total",
			Help: "Total number of audit runs by final status",
		},
		[]string{"status"},
	)
)
