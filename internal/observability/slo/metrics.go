package slo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets for the audit pipeline. A run counts against availability
// when no data source could be reached at all; a degraded run (one or
// more stages served by fallback) still counts as available but is
// tracked separately.
const (
	// RunAvailabilitySLO is the target ratio of audit runs that produce
	// at least partial results (99% = at most 1 in 100 runs empty-handed).
	RunAvailabilitySLO = 0.99

	// DegradedRatioSLO is the maximum acceptable ratio of runs that
	// needed any fallback provider (20%).
	DegradedRatioSLO = 0.20

	// StageFailureRateSLO is the maximum acceptable ratio of stages that
	// fail outright after retries and fallback (1%).
	StageFailureRateSLO = 0.01
)

// SLO tracking metrics. These gauges are recalculated after every audit
// run from the run history the process has observed.
var (
	// SLORunAvailability is the ratio of runs with at least partial
	// results (0-1).
	SLORunAvailability = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_audit_run_availability_ratio",
			Help: "Ratio of audit runs producing at least partial results (0-1), target: 0.99",
		},
	)

	// SLODegradedRatio is the ratio of runs that used any fallback (0-1).
	SLODegradedRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_audit_degraded_run_ratio",
			Help: "Ratio of audit runs that needed a fallback provider (0-1), target: <= 0.20",
		},
	)

	// SLOStageFailureRate is the ratio of stages that failed outright (0-1).
	SLOStageFailureRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_audit_stage_failure_ratio",
			Help: "Ratio of audit stages failing after retries and fallback (0-1), target: <= 0.01",
		},
	)
)

// Recorder accumulates per-run counts and keeps the SLO gauges current.
// It is written from the single scheduled-job goroutine, so it needs no
// locking.
type Recorder struct {
	runs          int
	availableRuns int
	degradedRuns  int
	stagesTotal   int
	stagesFailed  int
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ObserveRun folds one finished audit run into the SLO gauges.
func (r *Recorder) ObserveRun(available, degraded bool, stagesTotal, stagesFailed int) {
	r.runs++
	if available {
		r.availableRuns++
	}
	if degraded {
		r.degradedRuns++
	}
	r.stagesTotal += stagesTotal
	r.stagesFailed += stagesFailed

	SLORunAvailability.Set(ratio(r.availableRuns, r.runs))
	SLODegradedRatio.Set(ratio(r.degradedRuns, r.runs))
	SLOStageFailureRate.Set(ratio(r.stagesFailed, r.stagesTotal))
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}
