// Package resilience provides reliability and fault tolerance patterns for
// outbound calls to the audited data sources. It includes error
// classification, circuit breakers, retry logic with pluggable backoff
// strategies, and fallback chains for degraded data.
//
// The subpackages compose in a fixed order: the retry executor consults a
// per-operation circuit breaker before each attempt and the classifier after
// each failure; when retries are exhausted the orchestrator escalates to the
// fallback chain for the operation's resource.
//
// Usage Example:
//
//	registry := circuitbreaker.NewRegistry(nil)
//	executor := retry.NewExecutor(classify.New(chain))
//	result, err := executor.Execute(ctx, retry.Spec{
//	    Operation: "llm_visibility",
//	    Policy:    retry.LLMAPIPolicy(),
//	    Breaker:   registry.Get("llm_visibility"),
//	}, op)
package resilience
