package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_Initialized(t *testing.T) {
	// Use the shared instance to avoid duplicate Prometheus registration.
	metrics := globalTestMetrics

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if metrics.Metrics == nil {
		t.Error("embedded config metrics is nil")
	}
	if metrics.CronJobRunsTotal == nil {
		t.Error("CronJobRunsTotal is nil")
	}
	if metrics.CronJobDurationSeconds == nil {
		t.Error("CronJobDurationSeconds is nil")
	}
	if metrics.CronJobStagesSettledTotal == nil {
		t.Error("CronJobStagesSettledTotal is nil")
	}
	if metrics.CronJobLastSuccessTimestamp == nil {
		t.Error("CronJobLastSuccessTimestamp is nil")
	}
}

func TestMetrics_RecordJobRun(t *testing.T) {
	metrics := globalTestMetrics

	before := testutil.ToFloat64(metrics.CronJobRunsTotal.WithLabelValues("success"))
	metrics.RecordJobRun("success")
	metrics.RecordJobRun("success")
	metrics.RecordJobRun("failure")

	after := testutil.ToFloat64(metrics.CronJobRunsTotal.WithLabelValues("success"))
	if after-before != 2 {
		t.Errorf("expected success counter to grow by 2, grew by %v", after-before)
	}
}

func TestMetrics_RecordStagesSettled(t *testing.T) {
	metrics := globalTestMetrics

	before := testutil.ToFloat64(metrics.CronJobStagesSettledTotal)
	metrics.RecordStagesSettled(3)
	metrics.RecordStagesSettled(2)

	after := testutil.ToFloat64(metrics.CronJobStagesSettledTotal)
	if after-before != 5 {
		t.Errorf("expected stages counter to grow by 5, grew by %v", after-before)
	}
}

func TestMetrics_RecordLastSuccess(t *testing.T) {
	metrics := globalTestMetrics

	metrics.RecordLastSuccess()
	if testutil.ToFloat64(metrics.CronJobLastSuccessTimestamp) <= 0 {
		t.Error("expected last success timestamp to be set")
	}
}
