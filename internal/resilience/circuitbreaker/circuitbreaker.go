// Package circuitbreaker provides per-operation circuit breakers for
// external service calls. It uses the github.com/sony/gobreaker library to
// prevent cascading failures.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"brandlens/internal/observability/metrics"
)

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is the circuit breaker name for logging and metrics.
	// It matches the logical operation name the breaker guards.
	Name string

	// FailureThreshold is the number of consecutive failures in the
	// closed state that trips the circuit open.
	FailureThreshold uint32

	// SuccessThreshold is the number of consecutive successes in the
	// half-open state required to close the circuit again.
	SuccessThreshold uint32

	// RecoveryTimeout is how long the circuit stays open before the
	// first trial call is allowed.
	RecoveryTimeout time.Duration
}

// DefaultConfig returns a default configuration for circuit breakers.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RecoveryTimeout:  60 * time.Second,
	}
}

// LLMAPIConfig returns configuration optimized for LLM API calls.
// Trips quickly since each failed call burns quota.
func LLMAPIConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 3,
		SuccessThreshold: 2,
		RecoveryTimeout:  60 * time.Second,
	}
}

// NewsFeedConfig returns configuration optimized for feed fetching.
// Feeds fail transiently often, so the breaker is more forgiving.
func NewsFeedConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 8,
		SuccessThreshold: 3,
		RecoveryTimeout:  120 * time.Second,
	}
}

// BrandAPIConfig returns configuration optimized for the brand-data API.
func BrandAPIConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RecoveryTimeout:  90 * time.Second,
	}
}

// Status is a point-in-time view of a breaker for health display.
type Status struct {
	Name         string `json:"name"`
	State        string `json:"state"`
	FailureCount uint32 `json:"failure_count"`
	SuccessCount uint32 `json:"success_count"`
}

// Breaker guards one logical operation name. It is shared by every
// concurrent caller of that operation; gobreaker serializes state updates
// internally.
//
// Callers use the two-step form: Allow reports whether the call may proceed
// (false while open, until the recovery timeout elapses), and the returned
// done callback records the outcome. This split lets the retry executor
// classify the failure between the call and the record.
type Breaker struct {
	name string
	cfg  Config

	// mu guards breaker replacement on Reset; gobreaker handles all
	// other synchronization.
	mu      sync.Mutex
	breaker *gobreaker.TwoStepCircuitBreaker
}

// New creates a new circuit breaker with the given configuration.
func New(cfg Config) *Breaker {
	return &Breaker{
		name:    cfg.Name,
		cfg:     cfg,
		breaker: newTwoStep(cfg),
	}
}

func newTwoStep(cfg Config) *gobreaker.TwoStepCircuitBreaker {
	settings := gobreaker.Settings{
		Name: cfg.Name,
		// MaxRequests doubles as the half-open success threshold:
		// gobreaker closes after this many consecutive successes.
		MaxRequests: cfg.SuccessThreshold,
		// Interval 0 keeps closed-state counts until a success resets
		// the consecutive-failure streak.
		Interval: 0,
		Timeout:  cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		},
	}
	return gobreaker.NewTwoStepCircuitBreaker(settings)
}

// Allow reports whether a call may proceed. While the circuit is open and
// the recovery timeout has not elapsed it returns gobreaker.ErrOpenState.
// On success the returned callback must be invoked exactly once with the
// call's outcome.
func (b *Breaker) Allow() (func(success bool), error) {
	done, err := b.current().Allow()
	if err != nil {
		metrics.RecordBreakerRejection(b.name)
		return nil, err
	}
	return done, nil
}

// State returns the current state of the circuit breaker.
func (b *Breaker) State() gobreaker.State {
	return b.current().State()
}

// IsOpen returns true if the circuit breaker is in the open state.
func (b *Breaker) IsOpen() bool {
	return b.State() == gobreaker.StateOpen
}

// Name returns the name of the circuit breaker.
func (b *Breaker) Name() string {
	return b.name
}

// Status returns a snapshot of the breaker for monitoring display.
func (b *Breaker) Status() Status {
	cb := b.current()
	counts := cb.Counts()
	return Status{
		Name:         b.name,
		State:        cb.State().String(),
		FailureCount: counts.ConsecutiveFailures,
		SuccessCount: counts.ConsecutiveSuccesses,
	}
}

// Reset discards all breaker state and returns the circuit to closed.
// gobreaker has no manual reset, so a fresh instance is swapped in.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.breaker = newTwoStep(b.cfg)
}

func (b *Breaker) current() *gobreaker.TwoStepCircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.breaker
}

// IsOpenError reports whether err indicates the breaker refused the call,
// anywhere in its wrap chain. Both the open-state rejection and the
// half-open concurrency cap count.
func IsOpenError(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
