package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"brandlens/internal/pkg/config"
)

// Metrics exposes Prometheus metrics for the auditor worker. It embeds
// the shared configuration metrics and adds scheduled-job metrics for
// cron-driven audit runs.
type Metrics struct {
	*config.Metrics

	// CronJobRunsTotal counts cron-triggered audit job runs by status
	// ("success" or "failure").
	CronJobRunsTotal *prometheus.CounterVec

	// CronJobDurationSeconds measures end-to-end audit job durations.
	CronJobDurationSeconds prometheus.Histogram

	// CronJobStagesSettledTotal counts stages settled across all job runs.
	CronJobStagesSettledTotal prometheus.Counter

	// CronJobLastSuccessTimestamp is the Unix time of the last successful
	// job run, for staleness alerting.
	CronJobLastSuccessTimestamp prometheus.Gauge
}

// NewMetrics creates and registers the worker metrics. Registration
// happens via promauto, so call this at most once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		Metrics: config.NewMetrics("auditor"),

		CronJobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_cron_job_runs_total",
			Help: "Total number of cron-triggered audit job runs by status",
		}, []string{"status"}),

		CronJobDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "auditor_cron_job_duration_seconds",
			Help:    "Duration of cron-triggered audit job runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),

		CronJobStagesSettledTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditor_cron_job_stages_settled_total",
			Help: "Total number of audit stages settled across all job runs",
		}),

		CronJobLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "auditor_cron_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful audit job run",
		}),
	}
}

// RecordJobRun counts one job run with its status ("success" or "failure").
func (m *Metrics) RecordJobRun(status string) {
	m.CronJobRunsTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration observes one job run duration in seconds.
func (m *Metrics) RecordJobDuration(seconds float64) {
	m.CronJobDurationSeconds.Observe(seconds)
}

// RecordStagesSettled adds the number of stages settled by one job run.
func (m *Metrics) RecordStagesSettled(count int) {
	m.CronJobStagesSettledTotal.Add(float64(count))
}

// RecordLastSuccess stamps the last successful job completion time.
func (m *Metrics) RecordLastSuccess() {
	m.CronJobLastSuccessTimestamp.SetToCurrentTime()
}
