// Package retry provides a policy-driven retry executor for operations
// against unreliable external data sources. Backoff strategy, attempt
// budget, and retryability overrides are configured per operation; each
// failed attempt is classified and the operation's circuit breaker is
// consulted before every attempt.
package retry

import (
	"math/rand"
	"time"

	"brandlens/internal/resilience/classify"
)

// Backoff selects how the delay between attempts grows.
type Backoff int

// Backoff strategies.
const (
	// BackoffFixed waits BaseDelay between every attempt.
	BackoffFixed Backoff = iota

	// BackoffLinear waits BaseDelay * (attempt + 1).
	BackoffLinear

	// BackoffExponential waits BaseDelay * Multiplier^attempt.
	BackoffExponential

	// BackoffFibonacci waits BaseDelay * fib(attempt + 1).
	BackoffFibonacci
)

// String returns a string representation of the backoff strategy.
func (b Backoff) String() string {
	switch b {
	case BackoffFixed:
		return "fixed"
	case BackoffLinear:
		return "linear"
	case BackoffExponential:
		return "exponential"
	case BackoffFibonacci:
		return "fibonacci"
	default:
		return "unknown"
	}
}

// Policy holds the retry configuration for one operation. It is immutable
// after construction and safe to share across concurrent stages.
type Policy struct {
	// MaxAttempts is the maximum number of times the operation is
	// invoked, first call included.
	MaxAttempts int

	// BaseDelay is the delay unit the backoff strategy scales.
	BaseDelay time.Duration

	// MaxDelay caps the computed delay before jitter.
	MaxDelay time.Duration

	// Backoff selects the delay growth strategy.
	Backoff Backoff

	// Multiplier is the growth factor for the exponential strategy.
	// Zero means 2.0.
	Multiplier float64

	// Jitter, when true, perturbs each delay by up to ±10% to prevent
	// thundering herds.
	Jitter bool

	// RetryableCategories, when non-empty, is an explicit allow list:
	// only these categories are retried, overriding classifier defaults.
	RetryableCategories []classify.Category

	// NonRetryableCategories is an explicit deny list checked before the
	// allow list and the classifier default.
	NonRetryableCategories []classify.Category
}

// DefaultPolicy returns a default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Backoff:     BackoffExponential,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// LLMAPIPolicy returns a policy optimized for LLM API calls.
// Moderate retry due to cost considerations.
func LLMAPIPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
		Backoff:     BackoffExponential,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// NewsFeedPolicy returns a policy optimized for feed fetching.
// Aggressive retry for transient network issues.
func NewsFeedPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Backoff:     BackoffExponential,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// BrandAPIPolicy returns a policy optimized for the brand-data API.
// Fibonacci growth keeps early retries close together without hammering a
// struggling upstream later.
func BrandAPIPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    15 * time.Second,
		Backoff:     BackoffFibonacci,
		Jitter:      true,
	}
}

// Delay computes the backoff delay before the attempt+1-th invocation.
// The raw strategy value is clamped to [0, MaxDelay], then jitter (when
// enabled) perturbs it by ±10%, re-clamped to be non-negative.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	var raw time.Duration
	switch p.Backoff {
	case BackoffFixed:
		raw = p.BaseDelay
	case BackoffLinear:
		raw = p.BaseDelay * time.Duration(attempt+1)
	case BackoffExponential:
		multiplier := p.Multiplier
		if multiplier == 0 {
			multiplier = 2.0
		}
		scaled := float64(p.BaseDelay)
		for i := 0; i < attempt; i++ {
			scaled *= multiplier
			if p.MaxDelay > 0 && scaled > float64(p.MaxDelay) {
				scaled = float64(p.MaxDelay)
				break
			}
		}
		raw = time.Duration(scaled)
	case BackoffFibonacci:
		raw = p.BaseDelay * time.Duration(fib(attempt+1))
	default:
		raw = p.BaseDelay
	}

	if raw < 0 {
		raw = 0
	}
	if p.MaxDelay > 0 && raw > p.MaxDelay {
		raw = p.MaxDelay
	}

	if p.Jitter {
		raw = addJitter(raw)
	}
	return raw
}

// allowsRetry decides whether a classified failure should be retried under
// this policy. The deny list wins over everything; a non-empty allow list
// replaces the classifier's default.
func (p Policy) allowsRetry(info *classify.ErrorInfo) bool {
	for _, c := range p.NonRetryableCategories {
		if info.Category == c {
			return false
		}
	}
	if len(p.RetryableCategories) > 0 {
		for _, c := range p.RetryableCategories {
			if info.Category == c {
				return true
			}
		}
		return false
	}
	return info.Retryable
}

// fib returns the n-th Fibonacci number with fib(0)=0, fib(1)=1.
func fib(n int) int64 {
	if n <= 0 {
		return 0
	}
	var a, b int64 = 0, 1
	for i := 1; i < n; i++ {
		a, b = b, a+b
	}
	return b
}

// addJitter perturbs the delay by up to ±10% to prevent thundering herd.
// #nosec G404 -- math/rand is acceptable for backoff jitter; cryptographic
// randomness is not required.
func addJitter(d time.Duration) time.Duration {
	if d == 0 {
		return 0
	}
	jitter := time.Duration((rand.Float64()*2 - 1) * 0.1 * float64(d))
	d += jitter
	if d < 0 {
		d = 0
	}
	return d
}
