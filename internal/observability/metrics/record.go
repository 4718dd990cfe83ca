package metrics

import "time"

// RecordRetryAttempt records one operation invocation made by the retry
// executor. Outcome should be "success" or "failure".
func RecordRetryAttempt(operation string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	RetryAttemptsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordRetryExhausted records an operation failing after its final attempt.
func RecordRetryExhausted(operation string) {
	RetryExhaustedTotal.WithLabelValues(operation).Inc()
}

// RecordBackoff records the backoff delay inserted before the next attempt.
func RecordBackoff(operation string, delay time.Duration) {
	RetryBackoffDuration.WithLabelValues(operation).Observe(delay.Seconds())
}

// RecordBreakerTransition records a circuit breaker state change.
func RecordBreakerTransition(breaker, from, to string) {
	BreakerTransitionsTotal.WithLabelValues(breaker, from, to).Inc()
}

// RecordBreakerRejection records a call rejected by an open breaker.
func RecordBreakerRejection(breaker string) {
	BreakerRejectionsTotal.WithLabelValues(breaker).Inc()
}

// RecordFallbackAttempt records one fallback provider attempt.
func RecordFallbackAttempt(resource, provider string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	FallbackAttemptsTotal.WithLabelValues(resource, provider, outcome).Inc()
}

// RecordFallbackCacheHit records a fallback result served from cache.
func RecordFallbackCacheHit(resource string) {
	FallbackCacheHitsTotal.WithLabelValues(resource).Inc()
}

// RecordStageOutcome records a settled stage with its wall-clock duration.
// Outcome should be "success", "fallback", or "failed".
func RecordStageOutcome(stage, outcome string, duration time.Duration) {
	StageOutcomesTotal.WithLabelValues(stage, outcome).Inc()
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordAuditRun records a completed audit run with its final status.
func RecordAuditRun(status string, duration time.Duration) {
	AuditRunsTotal.WithLabelValues(status).Inc()
	AuditRunDuration.Observe(duration.Seconds())
}
