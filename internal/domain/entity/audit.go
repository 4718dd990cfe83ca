package entity

import (
	"fmt"
	"time"
)

// AuditStatus is the lifecycle state of an audit run.
type AuditStatus string

// Audit run states. Completed and Error are terminal.
const (
	AuditStarting   AuditStatus = "starting"
	AuditProcessing AuditStatus = "processing"
	AuditCompleted  AuditStatus = "completed"
	AuditError      AuditStatus = "error"
)

// StageRecord captures how one audit stage settled, including provenance
// when the data came from a degraded source.
type StageRecord struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"` // success, fallback, failed
	Source   string        `json:"source,omitempty"`
	Quality  float64       `json:"quality,omitempty"`
	Attempts int64         `json:"attempts"`
	Duration time.Duration `json:"duration"`

	// UserMessage is safe to show end users; it never contains raw
	// upstream error text.
	UserMessage string `json:"user_message,omitempty"`

	// Limitations lists caveats on degraded data (staleness, estimation).
	Limitations []string `json:"limitations,omitempty"`
}

// AuditRun is one execution of the audit pipeline for a brand.
type AuditRun struct {
	ID          string        `json:"id"`
	BrandID     int64         `json:"brand_id"`
	Status      AuditStatus   `json:"status"`
	Stages      []StageRecord `json:"stages"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// Validate validates the AuditRun entity fields.
func (r *AuditRun) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Message: "id is required"}
	}
	if r.BrandID <= 0 {
		return &ValidationError{Field: "brand_id", Message: "brand_id must be positive"}
	}
	switch r.Status {
	case AuditStarting, AuditProcessing, AuditCompleted, AuditError:
	default:
		return fmt.Errorf("invalid status: %s (must be starting, processing, completed, or error)", r.Status)
	}
	return nil
}

// Terminal reports whether the run has reached a final state.
func (r *AuditRun) Terminal() bool {
	return r.Status == AuditCompleted || r.Status == AuditError
}

// Settle transitions the run to a terminal state and stamps CompletedAt.
// Settling an already-terminal run is a no-op.
func (r *AuditRun) Settle(status AuditStatus, at time.Time) {
	if r.Terminal() {
		return
	}
	r.Status = status
	r.CompletedAt = &at
}
