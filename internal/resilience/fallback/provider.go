// Package fallback provides an ordered chain of degraded data providers
// tried when an operation's primary path is exhausted or its circuit is
// open. Successful results are cached with a TTL so an otherwise-exhausted
// chain can still serve stale-but-useful data.
package fallback

import (
	"context"
	"time"
)

// Priority orders providers within a chain. Lower values are tried first.
type Priority int

// Provider priorities. The internal cache provider always sorts last.
const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
	priorityCache
)

// String returns a string representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	case priorityCache:
		return "cache"
	default:
		return "unknown"
	}
}

// Request identifies the degraded data being resolved.
type Request struct {
	// Resource is the resource class providers are registered under
	// (e.g. "brand").
	Resource string

	// Key is the logical resource key used for caching
	// (e.g. "brand_acme").
	Key string

	// Args carries provider-specific arguments.
	Args map[string]any
}

// Result is the outcome of one fallback provider attempt.
type Result struct {
	// Success reports whether the provider produced usable data.
	Success bool

	// Data is the degraded payload.
	Data any

	// Source names the provider that produced the data.
	Source string

	// QualityScore is an opaque confidence score in [0, 1] relative to
	// the primary source (1.0 = primary-equivalent).
	QualityScore float64

	// Limitations lists human-readable caveats about the data.
	Limitations []string

	// ExecutionTime is how long the attempt took.
	ExecutionTime time.Duration
}

// Provider is an alternate, lower-fidelity data source.
// Implementations must honor ctx cancellation; the chain bounds every
// attempt with its own timeout.
type Provider interface {
	// Name identifies the provider in results, logs, and metrics.
	Name() string

	// Priority determines the provider's position in the chain.
	Priority() Priority

	// Attempt tries to produce degraded data for the request.
	// Returning an error or a Result with Success=false moves the chain
	// on to the next provider.
	Attempt(ctx context.Context, req Request) (*Result, error)
}
