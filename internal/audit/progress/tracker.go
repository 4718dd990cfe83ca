// Package progress converts stage completion events into a monotonically
// increasing, time-estimated progress snapshot for one audit run.
//
// All mutating events flow through a bounded channel to a single consumer
// goroutine that owns the state, so overall progress never appears to a
// reader as decreasing even when two stages complete in the same instant.
package progress

import (
	"sync"
	"time"
)

// Status is the lifecycle state of an audit run.
type Status string

// Run statuses. Error is terminal; Completed forces overall progress to 100.
const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// StageSpec describes one stage of a run. EstimatedDuration is used purely
// as a relative weight; stages need not actually take that long.
type StageSpec struct {
	Name              string
	EstimatedDuration time.Duration
	Substeps          []string
}

// Snapshot is the externally visible progress state. It is an immutable
// copy; the surrounding application forwards it to any live-update
// transport.
type Snapshot struct {
	AnalysisID        string         `json:"analysis_id"`
	Status            Status         `json:"status"`
	CurrentStageIndex int            `json:"current_stage_index"`
	CurrentStage      string         `json:"current_stage"`
	StageProgress     float64        `json:"stage_progress"`
	OverallProgress   float64        `json:"overall_progress"`
	ErrorMessage      string         `json:"error_message,omitempty"`
	Elapsed           time.Duration  `json:"elapsed_time"`
	ETA               *time.Duration `json:"eta"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Sink receives every snapshot the tracker produces. It is invoked from the
// tracker's consumer goroutine, one call at a time.
type Sink func(Snapshot)

type eventKind int

const (
	evStageStarted eventKind = iota
	evStageProgress
	evSubstepDone
	evStageCompleted
	evRunCompleted
	evRunFailed
)

type event struct {
	kind    eventKind
	stage   int
	percent float64
	message string
}

// Tracker owns the progress state of one audit run.
type Tracker struct {
	analysisID string
	stages     []StageSpec
	weights    []float64
	sink       Sink

	events chan event
	done   chan struct{}

	sendMu sync.Mutex
	closed bool

	// consumer-goroutine state
	stageProgress []float64
	substepsDone  []int
	lastOverall   float64
	started       time.Time
	status        Status
	currentStage  int
	errorMessage  string

	snapMu   sync.RWMutex
	snapshot Snapshot

	now func() time.Time
}

// New creates a tracker for the given ordered stages and starts its
// consumer goroutine. sink may be nil. Call Close when the run is over.
func New(analysisID string, stages []StageSpec, sink Sink) *Tracker {
	t := &Tracker{
		analysisID:    analysisID,
		stages:        stages,
		weights:       normalizeWeights(stages),
		sink:          sink,
		events:        make(chan event, 64),
		done:          make(chan struct{}),
		stageProgress: make([]float64, len(stages)),
		substepsDone:  make([]int, len(stages)),
		status:        StatusStarting,
		now:           time.Now,
	}
	t.started = t.now()
	t.snapshot = t.buildSnapshot()

	go t.consume()
	return t
}

// StageStarted marks a stage as in flight.
func (t *Tracker) StageStarted(stage int) {
	t.send(event{kind: evStageStarted, stage: stage})
}

// StageProgress reports partial progress (0-100) within a stage.
// Regressions are ignored; per-stage progress only moves forward.
func (t *Tracker) StageProgress(stage int, percent float64) {
	t.send(event{kind: evStageProgress, stage: stage, percent: percent})
}

// SubstepDone advances a stage's progress by one declared substep.
func (t *Tracker) SubstepDone(stage int) {
	t.send(event{kind: evSubstepDone, stage: stage})
}

// StageCompleted marks a stage fully done, contributing its whole weight.
func (t *Tracker) StageCompleted(stage int) {
	t.send(event{kind: evStageCompleted, stage: stage})
}

// Complete marks the run finished, forcing overall progress to 100.
func (t *Tracker) Complete() {
	t.send(event{kind: evRunCompleted})
}

// Fail marks the run as terminally failed with a sanitized message.
func (t *Tracker) Fail(message string) {
	t.send(event{kind: evRunFailed, message: message})
}

// Snapshot returns the latest progress snapshot.
func (t *Tracker) Snapshot() Snapshot {
	t.snapMu.RLock()
	defer t.snapMu.RUnlock()
	return t.snapshot
}

// Close stops the tracker after draining queued events. Events sent after
// Close are dropped. Idempotent.
func (t *Tracker) Close() {
	t.sendMu.Lock()
	if !t.closed {
		t.closed = true
		close(t.events)
	}
	t.sendMu.Unlock()
	<-t.done
}

func (t *Tracker) send(ev event) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if t.closed {
		return
	}
	t.events <- ev
}

func (t *Tracker) consume() {
	defer close(t.done)
	for ev := range t.events {
		t.apply(ev)
		snap := t.buildSnapshot()

		t.snapMu.Lock()
		t.snapshot = snap
		t.snapMu.Unlock()

		if t.sink != nil {
			t.sink(snap)
		}
	}
}

// apply mutates tracker state for one event. Runs only on the consumer
// goroutine. Terminal states ignore further events.
func (t *Tracker) apply(ev event) {
	if t.status == StatusCompleted || t.status == StatusError {
		return
	}

	switch ev.kind {
	case evStageStarted:
		if !t.validStage(ev.stage) {
			return
		}
		t.status = StatusProcessing
		t.currentStage = ev.stage

	case evStageProgress:
		if !t.validStage(ev.stage) {
			return
		}
		t.status = StatusProcessing
		pct := clamp(ev.percent, 0, 100)
		if pct > t.stageProgress[ev.stage] {
			t.stageProgress[ev.stage] = pct
		}

	case evSubstepDone:
		if !t.validStage(ev.stage) || len(t.stages[ev.stage].Substeps) == 0 {
			return
		}
		t.status = StatusProcessing
		total := len(t.stages[ev.stage].Substeps)
		if t.substepsDone[ev.stage] < total {
			t.substepsDone[ev.stage]++
		}
		pct := float64(t.substepsDone[ev.stage]) / float64(total) * 100
		if pct > t.stageProgress[ev.stage] {
			t.stageProgress[ev.stage] = pct
		}

	case evStageCompleted:
		if !t.validStage(ev.stage) {
			return
		}
		t.status = StatusProcessing
		t.stageProgress[ev.stage] = 100

	case evRunCompleted:
		t.status = StatusCompleted
		for i := range t.stageProgress {
			t.stageProgress[i] = 100
		}

	case evRunFailed:
		t.status = StatusError
		t.errorMessage = ev.message
	}
}

func (t *Tracker) buildSnapshot() Snapshot {
	overall := 0.0
	for i, w := range t.weights {
		overall += w * t.stageProgress[i] / 100
	}
	overall *= 100
	if t.status == StatusCompleted {
		overall = 100
	}
	// Monotonic clamp: a reader never observes a decrease within a run.
	if overall < t.lastOverall {
		overall = t.lastOverall
	}
	t.lastOverall = overall

	elapsed := t.now().Sub(t.started)

	var eta *time.Duration
	if overall > 0 && overall < 100 && t.status == StatusProcessing {
		remaining := time.Duration(float64(elapsed) * (100/overall - 1))
		eta = &remaining
	}

	stageName := ""
	stageProgress := 0.0
	if t.validStage(t.currentStage) {
		stageName = t.stages[t.currentStage].Name
		stageProgress = t.stageProgress[t.currentStage]
	}

	return Snapshot{
		AnalysisID:        t.analysisID,
		Status:            t.status,
		CurrentStageIndex: t.currentStage,
		CurrentStage:      stageName,
		StageProgress:     stageProgress,
		OverallProgress:   overall,
		ErrorMessage:      t.errorMessage,
		Elapsed:           elapsed,
		ETA:               eta,
		UpdatedAt:         t.now(),
	}
}

func (t *Tracker) validStage(i int) bool {
	return i >= 0 && i < len(t.stages)
}

// normalizeWeights converts estimated durations into relative weights that
// sum to 1. Stages without an estimate share the weight of a 1-unit stage.
func normalizeWeights(stages []StageSpec) []float64 {
	weights := make([]float64, len(stages))
	total := 0.0
	for i, s := range stages {
		w := s.EstimatedDuration.Seconds()
		if w <= 0 {
			w = 1
		}
		weights[i] = w
		total += w
	}
	if total == 0 {
		return weights
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
