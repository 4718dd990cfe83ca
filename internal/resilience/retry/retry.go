package retry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"brandlens/internal/observability/metrics"
	"brandlens/internal/resilience/circuitbreaker"
	"brandlens/internal/resilience/classify"
)

// Operation is a single fallible call against an external data source.
// Implementations must honor ctx cancellation.
type Operation func(ctx context.Context) (any, error)

// Spec names an operation and binds it to its policy and circuit breaker.
type Spec struct {
	// Operation is the logical operation name, used for the breaker,
	// statistics, logging, and metrics.
	Operation string

	// Resource is the fallback resource class used during
	// classification. May be empty when no fallback exists.
	Resource string

	// Policy is the retry policy for this operation.
	Policy Policy

	// Breaker is the per-operation circuit breaker, shared by every
	// concurrent caller of the operation.
	Breaker *circuitbreaker.Breaker
}

// Stats holds running counters for one operation.
type Stats struct {
	TotalAttempts     int64 `json:"total_attempts"`
	TotalSuccesses    int64 `json:"total_successes"`
	TotalFailures     int64 `json:"total_failures"`
	CircuitRejections int64 `json:"circuit_rejections"`
}

// Executor runs operations with retry, consulting the circuit breaker
// before each attempt and the classifier after each failure. It is safe
// for concurrent use.
type Executor struct {
	classifier *classify.Classifier

	mu    sync.Mutex
	stats map[string]*Stats
}

// NewExecutor creates an Executor using the given classifier.
func NewExecutor(classifier *classify.Classifier) *Executor {
	return &Executor{
		classifier: classifier,
		stats:      make(map[string]*Stats),
	}
}

// Execute invokes the operation with retry according to spec.Policy.
// The wrapped operation is never invoked more than Policy.MaxAttempts
// times. A circuit-open rejection fails immediately without consuming an
// attempt. The returned error, when non-nil, is a classified
// *classify.ErrorInfo with a sanitized user message.
func (e *Executor) Execute(ctx context.Context, spec Spec, op Operation) (any, error) {
	policy := spec.Policy
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	cctx := classify.Context{Operation: spec.Operation, Resource: spec.Resource}

	var lastInfo *classify.ErrorInfo
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		done, allowErr := spec.Breaker.Allow()
		if allowErr != nil {
			e.recordRejection(spec.Operation)
			slog.Warn("circuit breaker open, request rejected",
				slog.String("operation", spec.Operation),
				slog.String("state", spec.Breaker.State().String()))
			return nil, e.classifier.Classify(
				fmt.Errorf("%s unavailable: %w", spec.Operation, allowErr), cctx)
		}

		result, opErr := op(ctx)
		if opErr == nil {
			done(true)
			e.recordAttempt(spec.Operation, true)
			if attempt > 0 {
				slog.Info("operation succeeded after retry",
					slog.String("operation", spec.Operation),
					slog.Int("attempt", attempt+1))
			}
			return result, nil
		}

		done(false)
		e.recordAttempt(spec.Operation, false)
		lastInfo = e.classifier.Classify(opErr, cctx)

		if !policy.allowsRetry(lastInfo) {
			slog.Warn("non-retryable error, aborting",
				slog.String("operation", spec.Operation),
				slog.String("category", string(lastInfo.Category)),
				slog.String("correlation_id", lastInfo.CorrelationID),
				slog.Int("attempt", attempt+1))
			return nil, lastInfo
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}

		delay := policy.Delay(attempt)
		// A server-provided delay hint (429 Retry-After) takes
		// precedence when it is longer than the computed backoff.
		if lastInfo.RetryAfter > delay {
			delay = lastInfo.RetryAfter
		}
		metrics.RecordBackoff(spec.Operation, delay)

		slog.Warn("operation failed, retrying",
			slog.String("operation", spec.Operation),
			slog.String("category", string(lastInfo.Category)),
			slog.String("correlation_id", lastInfo.CorrelationID),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", policy.MaxAttempts),
			slog.Duration("delay", delay))

		// Suspends only this stage's goroutine, never siblings.
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, e.classifier.Classify(
				fmt.Errorf("retry aborted: %w", ctx.Err()), cctx)
		}
	}

	metrics.RecordRetryExhausted(spec.Operation)
	slog.Warn("retry attempts exhausted",
		slog.String("operation", spec.Operation),
		slog.String("category", string(lastInfo.Category)),
		slog.String("correlation_id", lastInfo.CorrelationID),
		slog.Int("max_attempts", policy.MaxAttempts))
	return nil, lastInfo
}

// Statistics returns a snapshot of per-operation counters.
func (e *Executor) Statistics() map[string]Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]Stats, len(e.stats))
	for name, s := range e.stats {
		out[name] = *s
	}
	return out
}

func (e *Executor) recordAttempt(operation string, success bool) {
	metrics.RecordRetryAttempt(operation, success)

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.statsLocked(operation)
	s.TotalAttempts++
	if success {
		s.TotalSuccesses++
	} else {
		s.TotalFailures++
	}
}

func (e *Executor) recordRejection(operation string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statsLocked(operation).CircuitRejections++
}

func (e *Executor) statsLocked(operation string) *Stats {
	s, ok := e.stats[operation]
	if !ok {
		s = &Stats{}
		e.stats[operation] = s
	}
	return s
}
