package worker

import (
	"fmt"
	"log/slog"
	"time"

	"brandlens/internal/pkg/config"
)

// Config holds the operational settings for the auditor worker: when
// scheduled audits run, how long a single run may take, and where the
// health endpoint listens. All values load from the environment with
// fail-open fallback to the defaults, so the worker always starts with
// a usable configuration.
type Config struct {
	// CronSchedule is the five-field cron expression for scheduled audits.
	// Default: "0 6 * * *" (every day at 06:00).
	CronSchedule string

	// Timezone is the IANA timezone name the cron schedule is evaluated in.
	// Default: "UTC".
	Timezone string

	// AuditTimeout bounds a single audit run. The run context is cancelled
	// when it elapses. Range: 1 minute to 1 hour. Default: 10 minutes.
	AuditTimeout time.Duration

	// PlanPath is the filesystem path of the audit plan YAML.
	// Default: "configs/audit-plan.yaml".
	PlanPath string

	// HealthPort is the port for the health check HTTP server.
	// Range: 1024-65535. Default: 9091.
	HealthPort int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CronSchedule: "0 6 * * *",
		Timezone:     "UTC",
		AuditTimeout: 10 * time.Minute,
		PlanPath:     "configs/audit-plan.yaml",
		HealthPort:   9091,
	}
}

// Validate checks every field and aggregates all failures into one error.
func (c *Config) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateDuration(c.AuditTimeout, time.Minute, time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("audit timeout: %w", err))
	}
	if c.PlanPath == "" {
		errs = append(errs, fmt.Errorf("plan path: cannot be empty"))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads the worker configuration from environment
// variables with fail-open fallback: an unset variable takes the default
// silently, a rejected one takes the default with a warning log and a
// fallback metric. The returned configuration is always valid.
//
// Environment variables:
//   - CRON_SCHEDULE: cron expression (default "0 6 * * *")
//   - WORKER_TIMEZONE: IANA timezone name (default "UTC")
//   - AUDIT_TIMEOUT: duration string, e.g. "10m" (default 10 minutes)
//   - AUDIT_PLAN_PATH: plan YAML path (default "configs/audit-plan.yaml")
//   - WORKER_HEALTH_PORT: integer 1024-65535 (default 9091)
func LoadConfigFromEnv(logger *slog.Logger, metrics *Metrics) Config {
	cfg := DefaultConfig()
	fallbackApplied := false

	apply := func(field string, result config.Result[string], dst *string) {
		*dst = result.Value
		if result.FallbackApplied {
			fallbackApplied = true
			metrics.RecordFallback(field)
			logger.Warn("configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", result.Warning))
		}
	}

	apply("cron_schedule", config.Validated("CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule), &cfg.CronSchedule)
	apply("timezone", config.Validated("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone), &cfg.Timezone)

	timeout := config.Duration("AUDIT_TIMEOUT", cfg.AuditTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Minute, time.Hour)
	})
	cfg.AuditTimeout = timeout.Value
	if timeout.FallbackApplied {
		fallbackApplied = true
		metrics.RecordFallback("audit_timeout")
		logger.Warn("configuration fallback applied",
			slog.String("field", "audit_timeout"),
			slog.String("warning", timeout.Warning))
	}

	cfg.PlanPath = config.String("AUDIT_PLAN_PATH", cfg.PlanPath)

	port := config.Int("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = port.Value
	if port.FallbackApplied {
		fallbackApplied = true
		metrics.RecordFallback("health_port")
		logger.Warn("configuration fallback applied",
			slog.String("field", "health_port"),
			slog.String("warning", port.Warning))
	}

	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoad()

	return cfg
}
