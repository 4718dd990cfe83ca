// Package classify turns raw failures from external data sources into
// structured, categorized errors with a recovery recommendation.
// The categorized form is what the retry executor and the orchestrator act
// on; raw error text never reaches user-facing messages.
package classify

import (
	"fmt"
	"time"
)

// Category identifies the broad class of a failure.
type Category string

// Failure categories for external calls.
const (
	CategoryNetwork        Category = "network"
	CategoryTimeout        Category = "timeout"
	CategoryAuthentication Category = "authentication"
	CategoryRateLimit      Category = "rate_limit"
	CategoryValidation     Category = "validation"
	CategoryServer         Category = "server"
	CategoryUnknown        Category = "unknown"
)

// Severity indicates how serious a classified failure is.
type Severity string

// Severity levels, from transient noise to run-ending faults.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Strategy is the recommended recovery action for a classified failure.
type Strategy string

// Recovery strategies.
const (
	StrategyRetry      Strategy = "retry"
	StrategyFallback   Strategy = "fallback"
	StrategyDegrade    Strategy = "degrade"
	StrategyUserAction Strategy = "user_action"
	StrategyFatal      Strategy = "fatal"
)

// ErrorInfo is the immutable classified form of a failed external call.
// It implements error. UserMessage is generated from the category alone and
// is safe to surface; the raw cause is only reachable through Unwrap for
// structured logging.
type ErrorInfo struct {
	// Category is the failure class (network, timeout, ...).
	Category Category

	// Severity indicates how serious the failure is.
	Severity Severity

	// Strategy is the recommended recovery action.
	Strategy Strategy

	// Retryable reports whether retrying the same call may help.
	Retryable bool

	// UserMessage is a sanitized, category-derived message suitable for
	// display. It never contains raw error text, stack traces, or
	// upstream payloads.
	UserMessage string

	// FallbackAvailable is true when at least one fallback provider is
	// registered for the failing operation's resource.
	FallbackAvailable bool

	// CorrelationID ties this failure to log entries and metrics.
	CorrelationID string

	// Operation is the logical operation name the failure occurred in.
	Operation string

	// RetryAfter is a server-provided delay hint (rate limiting), or zero.
	RetryAfter time.Duration

	cause error
}

// Error implements the error interface. The message identifies the
// operation and category but not the raw cause.
func (e *ErrorInfo) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("%s error: %s", e.Category, e.UserMessage)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Operation, e.Category, e.UserMessage)
}

// Unwrap exposes the raw cause for errors.Is/errors.As chains and logging.
func (e *ErrorInfo) Unwrap() error {
	return e.cause
}

// userMessages maps each category to its sanitized display message.
var userMessages = map[Category]string{
	CategoryNetwork:        "a network problem prevented the data source from responding",
	CategoryTimeout:        "the data source took too long to respond",
	CategoryAuthentication: "access to the data source was denied; check the configured credentials",
	CategoryRateLimit:      "the data source is rate limiting requests; the operation will be retried",
	CategoryValidation:     "the request was rejected by the data source as invalid",
	CategoryServer:         "the data source reported an internal problem",
	CategoryUnknown:        "an unexpected problem occurred while contacting the data source",
}

// userMessageFor returns the sanitized message for a category.
func userMessageFor(c Category) string {
	if msg, ok := userMessages[c]; ok {
		return msg
	}
	return userMessages[CategoryUnknown]
}
