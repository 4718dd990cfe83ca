// Package tracing provides OpenTelemetry tracing for audit runs.
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the global tracer instance for the brandlens application.
var tracer = otel.Tracer("brandlens")

// GetTracer returns the global tracer for creating spans.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "stage.llm_visibility")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}
