package progress

import (
	"math"
	"sync"
	"testing"
	"time"
)

func testStages() []StageSpec {
	return []StageSpec{
		{Name: "llm_visibility", EstimatedDuration: 20 * time.Second},
		{Name: "news_mentions", EstimatedDuration: 10 * time.Second},
		{Name: "brand_data", EstimatedDuration: 10 * time.Second},
	}
}

// collectingSink records every snapshot. The tracker invokes it from a
// single goroutine, so no locking is needed during the run.
type collectingSink struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (s *collectingSink) sink(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
}

func (s *collectingSink) all() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Snapshot(nil), s.snaps...)
}

func TestTracker_WeightedOverallProgress(t *testing.T) {
	tr := New("run-1", testStages(), nil)

	// First stage weighs 20/40 = 50%.
	tr.StageStarted(0)
	tr.StageCompleted(0)
	tr.Close()

	snap := tr.Snapshot()
	if math.Abs(snap.OverallProgress-50) > 0.001 {
		t.Errorf("expected overall=50 after completing the 50%%-weight stage, got %v", snap.OverallProgress)
	}
	if snap.Status != StatusProcessing {
		t.Errorf("expected status=processing, got %s", snap.Status)
	}
}

func TestTracker_PartialStageProgress(t *testing.T) {
	tr := New("run-1", testStages(), nil)

	tr.StageStarted(0)
	tr.StageProgress(0, 50) // 50% of a 50%-weight stage = 25 overall
	tr.Close()

	snap := tr.Snapshot()
	if math.Abs(snap.OverallProgress-25) > 0.001 {
		t.Errorf("expected overall=25, got %v", snap.OverallProgress)
	}
	if snap.StageProgress != 50 {
		t.Errorf("expected stage_progress=50, got %v", snap.StageProgress)
	}
}

func TestTracker_StageProgressNeverRegresses(t *testing.T) {
	tr := New("run-1", testStages(), nil)

	tr.StageStarted(0)
	tr.StageProgress(0, 60)
	tr.StageProgress(0, 30) // stale report, must be ignored
	tr.Close()

	if got := tr.Snapshot().StageProgress; got != 60 {
		t.Errorf("expected stage progress to stay at 60, got %v", got)
	}
}

func TestTracker_CompleteForcesHundred(t *testing.T) {
	tr := New("run-1", testStages(), nil)

	tr.StageCompleted(0)
	tr.Complete()
	tr.Close()

	snap := tr.Snapshot()
	if snap.Status != StatusCompleted {
		t.Errorf("expected status=completed, got %s", snap.Status)
	}
	if snap.OverallProgress != 100 {
		t.Errorf("expected overall=100, got %v", snap.OverallProgress)
	}
	if snap.ETA != nil {
		t.Errorf("expected no ETA after completion, got %v", *snap.ETA)
	}
}

func TestTracker_ErrorIsTerminal(t *testing.T) {
	tr := New("run-1", testStages(), nil)

	tr.StageCompleted(0)
	tr.Fail("one or more data sources were unavailable")
	tr.StageCompleted(1) // after terminal error, must be ignored
	tr.Close()

	snap := tr.Snapshot()
	if snap.Status != StatusError {
		t.Errorf("expected status=error, got %s", snap.Status)
	}
	if snap.ErrorMessage != "one or more data sources were unavailable" {
		t.Errorf("unexpected error message: %q", snap.ErrorMessage)
	}
	if math.Abs(snap.OverallProgress-50) > 0.001 {
		t.Errorf("expected overall frozen at 50, got %v", snap.OverallProgress)
	}
}

func TestTracker_ETAUndefinedAtZeroProgress(t *testing.T) {
	tr := New("run-1", testStages(), nil)
	tr.StageStarted(0)
	tr.Close()

	if eta := tr.Snapshot().ETA; eta != nil {
		t.Errorf("expected nil ETA at zero progress, got %v", *eta)
	}
}

func TestTracker_ETAOnceProgressing(t *testing.T) {
	tr := New("run-1", testStages(), nil)

	base := time.Now()
	now := base
	tr.now = func() time.Time { return now }
	tr.started = base

	now = base.Add(10 * time.Second)
	tr.StageCompleted(0) // overall 50%
	tr.Close()

	snap := tr.Snapshot()
	if snap.ETA == nil {
		t.Fatal("expected an ETA once progress is positive")
	}
	// elapsed * (100/overall) - elapsed = 10s * 2 - 10s = 10s.
	if math.Abs(snap.ETA.Seconds()-10) > 0.5 {
		t.Errorf("expected ETA near 10s, got %v", *snap.ETA)
	}
}

func TestTracker_SubstepsAdvanceStageProgress(t *testing.T) {
	stages := []StageSpec{
		{Name: "brand_data", EstimatedDuration: 10 * time.Second,
			Substeps: []string{"fetch", "validate", "score", "store"}},
	}
	tr := New("run-1", stages, nil)

	tr.StageStarted(0)
	tr.SubstepDone(0)
	tr.SubstepDone(0)
	tr.Close()

	if got := tr.Snapshot().StageProgress; math.Abs(got-50) > 0.001 {
		t.Errorf("expected stage progress 50 after 2/4 substeps, got %v", got)
	}
}

func TestTracker_MonotonicUnderConcurrentCompletions(t *testing.T) {
	stages := make([]StageSpec, 8)
	for i := range stages {
		stages[i] = StageSpec{Name: "stage", EstimatedDuration: time.Second}
	}

	sink := &collectingSink{}
	tr := New("run-1", stages, sink.sink)

	var wg sync.WaitGroup
	for i := range stages {
		wg.Add(1)
		go func(stage int) {
			defer wg.Done()
			tr.StageStarted(stage)
			tr.StageProgress(stage, 50)
			tr.StageCompleted(stage)
		}(i)
	}
	wg.Wait()
	tr.Complete()
	tr.Close()

	snaps := sink.all()
	if len(snaps) == 0 {
		t.Fatal("expected sink to receive snapshots")
	}
	last := -1.0
	for i, s := range snaps {
		if s.OverallProgress < last {
			t.Fatalf("overall progress decreased at snapshot %d: %v -> %v",
				i, last, s.OverallProgress)
		}
		last = s.OverallProgress
	}
	if final := snaps[len(snaps)-1]; final.OverallProgress != 100 {
		t.Errorf("expected final overall=100, got %v", final.OverallProgress)
	}
}

func TestTracker_SendAfterCloseIsDropped(t *testing.T) {
	tr := New("run-1", testStages(), nil)
	tr.Close()
	tr.StageCompleted(0) // must not panic
	tr.Close()           // idempotent
}
