// Package orchestrator fans out independent audit stages concurrently,
// each wrapped in retry, circuit breaking, and fallback, and merges the
// partial results. Failure of one stage never prevents the others from
// completing or from being merged into the final result.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"brandlens/internal/audit/progress"
	"brandlens/internal/observability/metrics"
	"brandlens/internal/observability/tracing"
	"brandlens/internal/resilience/circuitbreaker"
	"brandlens/internal/resilience/classify"
	"brandlens/internal/resilience/fallback"
	"brandlens/internal/resilience/retry"
)

// Stage describes one independent unit of audit work.
type Stage struct {
	// Name is the logical operation name; it keys the circuit breaker
	// and retry statistics.
	Name string

	// Resource is the fallback resource class consulted when retries
	// are exhausted. Empty means the stage has no degraded path.
	Resource string

	// Key is the logical resource key for fallback caching
	// (e.g. "brand_acme").
	Key string

	// Policy is the retry policy for the stage's operation.
	Policy retry.Policy

	// Operation performs the stage's external call.
	Operation retry.Operation

	// EstimatedDuration weights the stage in overall progress.
	EstimatedDuration time.Duration

	// Substeps optionally subdivide the stage for progress reporting.
	Substeps []string

	// FallbackArgs is passed to fallback providers on escalation.
	FallbackArgs map[string]any
}

// StageStatus is how a stage settled.
type StageStatus string

// Stage outcomes.
const (
	StageSucceeded StageStatus = "success"
	StageFellBack  StageStatus = "fallback"
	StageFailed    StageStatus = "failed"
)

// Outcome is the settled result of one stage.
type Outcome struct {
	Status StageStatus

	// Data is the primary result when Status is StageSucceeded.
	Data any

	// Fallback is the degraded result when Status is StageFellBack.
	Fallback *fallback.Result

	// Err is the classified failure when Status is StageFailed.
	Err *classify.ErrorInfo

	// Duration is the stage's wall-clock time, waits included.
	Duration time.Duration

	// Attempts is how many times the primary operation was invoked.
	Attempts int64
}

// Result aggregates a whole run: every stage's outcome plus execution
// metadata.
type Result struct {
	AnalysisID string
	Outcomes   map[string]Outcome

	Duration       time.Duration
	StagesTotal    int
	StagesSucceeded int
	StagesFellBack int
	StagesFailed   int

	// PeakConcurrency is the largest number of stages observed in
	// flight at once.
	PeakConcurrency int

	// RetriesUsed counts operation invocations beyond each stage's
	// first attempt.
	RetriesUsed int64

	// FallbacksUsed counts stages that settled through the fallback
	// chain.
	FallbacksUsed int
}

// Succeeded reports whether at least one stage produced data, primary or
// degraded.
func (r *Result) Succeeded() bool {
	return r.StagesSucceeded > 0 || r.StagesFellBack > 0
}

// Config holds orchestrator configuration.
type Config struct {
	// WorkerLimit bounds how many stages run concurrently, so fan-out
	// does not hammer rate-limited dependencies. Zero means 4.
	WorkerLimit int
}

// DefaultConfig returns a default orchestrator configuration.
func DefaultConfig() Config {
	return Config{WorkerLimit: 4}
}

// Orchestrator runs audit stages with bounded concurrency. The breaker
// registry is injected, not ambient, so concurrent orchestrators can share
// one set of per-operation breakers.
type Orchestrator struct {
	executor *retry.Executor
	breakers *circuitbreaker.Registry
	chain    *fallback.Chain
	limit    int
}

// New creates an Orchestrator. chain may be nil when no fallback providers
// exist.
func New(executor *retry.Executor, breakers *circuitbreaker.Registry, chain *fallback.Chain, cfg Config) *Orchestrator {
	limit := cfg.WorkerLimit
	if limit <= 0 {
		limit = 4
	}
	return &Orchestrator{
		executor: executor,
		breakers: breakers,
		chain:    chain,
		limit:    limit,
	}
}

// Run dispatches all stages concurrently and blocks until every stage has
// settled or ctx is cancelled. Each stage settles as success, fallback, or
// failure; the run itself never fails because a stage did. On cancellation
// the already-settled outcomes are returned as partial output together
// with ctx's error.
func (o *Orchestrator) Run(ctx context.Context, analysisID string, stages []Stage, sink progress.Sink) (*Result, error) {
	start := time.Now()

	specs := make([]progress.StageSpec, len(stages))
	for i, s := range stages {
		specs[i] = progress.StageSpec{
			Name:              s.Name,
			EstimatedDuration: s.EstimatedDuration,
			Substeps:          s.Substeps,
		}
	}
	tracker := progress.New(analysisID, specs, sink)

	var (
		mu       sync.Mutex
		outcomes = make(map[string]Outcome, len(stages))

		inFlight int32
		peak     int32
	)

	sem := make(chan struct{}, o.limit)
	eg, egCtx := errgroup.WithContext(ctx)

	for i, st := range stages {
		index, stage := i, st

		eg.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-egCtx.Done():
				// Never dispatched; record as failed so the
				// aggregate stays complete.
				mu.Lock()
				outcomes[stage.Name] = Outcome{
					Status: StageFailed,
					Err: classify.New(nil).Classify(egCtx.Err(),
						classify.Context{Operation: stage.Name}),
				}
				mu.Unlock()
				return nil
			}
			defer func() { <-sem }()

			cur := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
					break
				}
			}
			defer atomic.AddInt32(&inFlight, -1)

			outcome := o.runStage(egCtx, index, stage, tracker)

			mu.Lock()
			outcomes[stage.Name] = outcome
			mu.Unlock()
			return nil
		})
	}

	_ = eg.Wait()
	duration := time.Since(start)

	result := &Result{
		AnalysisID:      analysisID,
		Outcomes:        outcomes,
		Duration:        duration,
		StagesTotal:     len(stages),
		PeakConcurrency: int(atomic.LoadInt32(&peak)),
	}
	for _, out := range outcomes {
		switch out.Status {
		case StageSucceeded:
			result.StagesSucceeded++
		case StageFellBack:
			result.StagesFellBack++
			result.FallbacksUsed++
		case StageFailed:
			result.StagesFailed++
		}
		if out.Attempts > 1 {
			result.RetriesUsed += out.Attempts - 1
		}
	}

	status := "completed"
	switch {
	case ctx.Err() != nil:
		status = "cancelled"
		tracker.Fail("the audit was cancelled before all stages completed")
	case !result.Succeeded() && len(stages) > 0:
		status = "error"
		tracker.Fail("no data source could be reached")
	default:
		tracker.Complete()
	}
	tracker.Close()
	metrics.RecordAuditRun(status, duration)

	slog.Info("audit run settled",
		slog.String("analysis_id", analysisID),
		slog.String("status", status),
		slog.Duration("duration", duration),
		slog.Int("stages", result.StagesTotal),
		slog.Int("succeeded", result.StagesSucceeded),
		slog.Int("fell_back", result.StagesFellBack),
		slog.Int("failed", result.StagesFailed),
		slog.Int64("retries_used", result.RetriesUsed),
		slog.Int("peak_concurrency", result.PeakConcurrency))

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}

// runStage settles one stage: retry first, fallback on exhaustion, failure
// only when both paths are spent.
func (o *Orchestrator) runStage(ctx context.Context, index int, stage Stage, tracker *progress.Tracker) Outcome {
	tracker.StageStarted(index)

	cctx, span := tracing.GetTracer().Start(ctx, "stage."+stage.Name)
	defer span.End()

	start := time.Now()
	var attempts int64
	counting := func(opCtx context.Context) (any, error) {
		atomic.AddInt64(&attempts, 1)
		return stage.Operation(opCtx)
	}

	data, err := o.executor.Execute(cctx, retry.Spec{
		Operation: stage.Name,
		Resource:  stage.Resource,
		Policy:    stage.Policy,
		Breaker:   o.breakers.Get(stage.Name),
	}, counting)

	outcome := Outcome{Duration: time.Since(start), Attempts: atomic.LoadInt64(&attempts)}

	if err == nil {
		outcome.Status = StageSucceeded
		outcome.Data = data
	} else if o.chain != nil && stage.Resource != "" && o.chain.HasProviders(stage.Resource) {
		fb, fbErr := o.chain.Resolve(cctx, fallback.Request{
			Resource: stage.Resource,
			Key:      stage.Key,
			Args:     stage.FallbackArgs,
		})
		if fbErr == nil {
			outcome.Status = StageFellBack
			outcome.Fallback = fb
		} else {
			outcome.Status = StageFailed
			outcome.Err = asErrorInfo(err, stage.Name)
			slog.Warn("stage failed after retry and fallback",
				slog.String("stage", stage.Name),
				slog.Any("error", fbErr))
		}
	} else {
		outcome.Status = StageFailed
		outcome.Err = asErrorInfo(err, stage.Name)
	}

	outcome.Duration = time.Since(start)
	span.SetAttributes(
		attribute.String("stage.outcome", string(outcome.Status)),
		attribute.Int64("stage.attempts", outcome.Attempts),
	)
	metrics.RecordStageOutcome(stage.Name, string(outcome.Status), outcome.Duration)
	tracker.StageCompleted(index)

	return outcome
}

// asErrorInfo normalizes any error into the classified form so outcome
// consumers always get a sanitized user message.
func asErrorInfo(err error, operation string) *classify.ErrorInfo {
	if info, ok := err.(*classify.ErrorInfo); ok {
		return info
	}
	return classify.New(nil).Classify(err, classify.Context{Operation: operation})
}
