package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// HTTPError represents an HTTP-level failure with a status code.
// Provider adapters return it so classification can use the status code
// instead of guessing from message text.
type HTTPError struct {
	StatusCode int
	Message    string

	// RetryAfter carries the Retry-After header value when the server
	// sent one (429 responses).
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// FallbackProbe reports whether a fallback provider is registered for a
// resource. The fallback chain implements it; classification uses it to set
// FallbackAvailable and to escalate retryable strategies to fallback.
type FallbackProbe interface {
	HasProviders(resource string) bool
}

// Context describes where a failure occurred.
type Context struct {
	// Operation is the logical operation name (e.g. "llm_visibility").
	Operation string

	// Resource is the fallback resource class for the operation.
	Resource string
}

// Classifier maps raw failures to ErrorInfo values.
// It is read-only after construction and safe for concurrent use.
type Classifier struct {
	probe FallbackProbe
}

// New creates a Classifier. probe may be nil when no fallback chain exists;
// FallbackAvailable is then always false.
func New(probe FallbackProbe) *Classifier {
	return &Classifier{probe: probe}
}

// Classify converts err into an ErrorInfo. A nil err returns nil.
// Classification never fails: anything unrecognized becomes CategoryUnknown,
// retryable by default, since silently dropping a transient fault is worse
// than one extra retry.
func (c *Classifier) Classify(err error, cctx Context) *ErrorInfo {
	if err == nil {
		return nil
	}

	// An already-classified error passes through unchanged.
	var info *ErrorInfo
	if errors.As(err, &info) {
		return info
	}

	category, retryAfter := c.categorize(err)
	fallbackAvailable := c.probe != nil && cctx.Resource != "" && c.probe.HasProviders(cctx.Resource)

	out := &ErrorInfo{
		Category:          category,
		Severity:          severityFor(category),
		Strategy:          strategyFor(category, fallbackAvailable),
		Retryable:         retryableFor(category),
		UserMessage:       userMessageFor(category),
		FallbackAvailable: fallbackAvailable,
		CorrelationID:     uuid.New().String(),
		Operation:         cctx.Operation,
		RetryAfter:        retryAfter,
		cause:             err,
	}

	// A canceled caller context is not an upstream fault; the retry loop
	// must stop without escalating to fallback.
	if errors.Is(err, context.Canceled) {
		out.Retryable = false
		out.Strategy = StrategyFatal
		out.FallbackAvailable = false
	}
	return out
}

// categorize applies status-code and error-type heuristics.
func (c *Classifier) categorize(err error) (Category, time.Duration) {
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout, 0
	}
	if errors.Is(err, context.Canceled) {
		return CategoryUnknown, 0
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden:
			return CategoryAuthentication, 0
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return CategoryRateLimit, httpErr.RetryAfter
		case httpErr.StatusCode == http.StatusBadRequest ||
			httpErr.StatusCode == http.StatusNotFound ||
			httpErr.StatusCode == http.StatusUnprocessableEntity:
			return CategoryValidation, 0
		case httpErr.StatusCode == http.StatusRequestTimeout:
			return CategoryTimeout, 0
		case httpErr.StatusCode >= 500 && httpErr.StatusCode < 600:
			return CategoryServer, 0
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout, 0
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return CategoryNetwork, 0
	}
	if errors.Is(err, syscall.ETIMEDOUT) {
		return CategoryTimeout, 0
	}

	// Message heuristics for errors that SDKs flatten into strings.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "circuit breaker is open"):
		// The guarded dependency is unhealthy; treat like a server
		// fault so the strategy can escalate to fallback.
		return CategoryServer, 0
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return CategoryRateLimit, 0
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "invalid api key") || strings.Contains(msg, "authentication"):
		return CategoryAuthentication, 0
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return CategoryTimeout, 0
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") || strings.Contains(msg, "network is unreachable"):
		return CategoryNetwork, 0
	}

	return CategoryUnknown, 0
}

// retryableFor returns the default retryability for a category. Policy-level
// allow/deny lists can override this.
func retryableFor(c Category) bool {
	switch c {
	case CategoryAuthentication, CategoryValidation:
		return false
	default:
		return true
	}
}

// strategyFor maps a category to its recovery strategy. Retryable server-side
// categories escalate to fallback when a provider is registered.
func strategyFor(c Category, fallbackAvailable bool) Strategy {
	switch c {
	case CategoryAuthentication:
		return StrategyUserAction
	case CategoryValidation:
		return StrategyFatal
	case CategoryRateLimit:
		return StrategyRetry
	case CategoryNetwork, CategoryTimeout, CategoryServer:
		if fallbackAvailable {
			return StrategyFallback
		}
		return StrategyRetry
	default:
		return StrategyRetry
	}
}

// severityFor maps a category to a severity level.
func severityFor(c Category) Severity {
	switch c {
	case CategoryAuthentication:
		return SeverityCritical
	case CategoryValidation:
		return SeverityHigh
	case CategoryNetwork, CategoryTimeout, CategoryServer:
		return SeverityMedium
	case CategoryRateLimit:
		return SeverityLow
	default:
		return SeverityMedium
	}
}
