package slo

import (
	"testing"

	io_prometheus_client "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g interface {
	Write(*io_prometheus_client.Metric) error
}) float64 {
	t.Helper()

	metric := &io_prometheus_client.Metric{}
	if err := g.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetGauge().GetValue()
}

func TestSLOConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		expected float64
	}{
		{"RunAvailabilitySLO", RunAvailabilitySLO, 0.99},
		{"DegradedRatioSLO", DegradedRatioSLO, 0.20},
		{"StageFailureRateSLO", StageFailureRateSLO, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.value, tt.expected)
			}
		})
	}
}

func TestRecorder_ObserveRun(t *testing.T) {
	SLORunAvailability.Set(0)
	SLODegradedRatio.Set(0)
	SLOStageFailureRate.Set(0)

	r := NewRecorder()

	// Clean run: all stages primary.
	r.ObserveRun(true, false, 3, 0)
	if got := gaugeValue(t, SLORunAvailability); got != 1.0 {
		t.Errorf("availability after clean run = %v, want 1.0", got)
	}
	if got := gaugeValue(t, SLODegradedRatio); got != 0.0 {
		t.Errorf("degraded ratio after clean run = %v, want 0.0", got)
	}

	// Degraded run: results came, but one-third of stages failed.
	r.ObserveRun(true, true, 3, 1)
	if got := gaugeValue(t, SLODegradedRatio); got != 0.5 {
		t.Errorf("degraded ratio = %v, want 0.5", got)
	}
	if got := gaugeValue(t, SLOStageFailureRate); got-1.0/6.0 > 1e-9 || got-1.0/6.0 < -1e-9 {
		t.Errorf("stage failure rate = %v, want %v", got, 1.0/6.0)
	}

	// Empty-handed run: no stage settled.
	r.ObserveRun(false, false, 3, 3)
	if got := gaugeValue(t, SLORunAvailability); got < 0.66 || got > 0.67 {
		t.Errorf("availability after failed run = %v, want 2/3", got)
	}
}

func TestRecorder_NoRuns(t *testing.T) {
	r := NewRecorder()

	// Zero observations must not divide by zero.
	r.ObserveRun(true, false, 0, 0)
	if got := gaugeValue(t, SLOStageFailureRate); got != 0 {
		t.Errorf("stage failure rate with no stages = %v, want 0", got)
	}
}
