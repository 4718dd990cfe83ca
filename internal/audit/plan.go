// Package audit wires audit plans to the execution core: a Plan describes
// which stages run for a brand, and the Service binds each stage to its
// data-source operation and runs them through the orchestrator.
package audit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"brandlens/internal/domain/entity"
	"brandlens/internal/resilience/retry"
)

// Stage names the Service knows how to bind.
const (
	StageLLMVisibility = "llm_visibility"
	StageNewsMentions  = "news_mentions"
	StageBrandData     = "brand_data"
)

// PlanStage describes one stage in an audit plan file.
type PlanStage struct {
	Name              string        `yaml:"name"`
	Resource          string        `yaml:"resource"`
	Policy            string        `yaml:"policy"`
	EstimatedDuration time.Duration `yaml:"estimated_duration"`
	Substeps          []string      `yaml:"substeps"`

	// MaxAttempts and BaseDelay, when positive, override the named
	// policy preset for this stage.
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
}

// Plan is a declarative audit configuration loaded from YAML.
type Plan struct {
	Brand       entity.Brand `yaml:"brand"`
	WorkerLimit int          `yaml:"worker_limit"`
	NewsFeeds   []string     `yaml:"news_feeds"`
	Stages      []PlanStage  `yaml:"stages"`
}

// LoadPlan reads and validates an audit plan from a YAML file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan file: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return &plan, nil
}

// Validate checks the plan for structural problems before any stage runs.
func (p *Plan) Validate() error {
	if err := p.Brand.Validate(); err != nil {
		return err
	}
	if len(p.Stages) == 0 {
		return fmt.Errorf("plan has no stages")
	}
	if p.WorkerLimit < 0 {
		return fmt.Errorf("worker_limit must not be negative, got %d", p.WorkerLimit)
	}

	seen := make(map[string]bool, len(p.Stages))
	for i, st := range p.Stages {
		if st.Name == "" {
			return fmt.Errorf("stage %d has no name", i)
		}
		if seen[st.Name] {
			return fmt.Errorf("duplicate stage name: %s", st.Name)
		}
		seen[st.Name] = true

		if _, err := policyFor(st.Policy); err != nil {
			return fmt.Errorf("stage %s: %w", st.Name, err)
		}
		if st.EstimatedDuration < 0 {
			return fmt.Errorf("stage %s: estimated_duration must not be negative", st.Name)
		}
		if st.MaxAttempts < 0 {
			return fmt.Errorf("stage %s: max_attempts must not be negative", st.Name)
		}
		if st.BaseDelay < 0 {
			return fmt.Errorf("stage %s: base_delay must not be negative", st.Name)
		}
	}
	return nil
}

// resolvePolicy applies the stage's overrides to its named preset.
func resolvePolicy(st PlanStage) (retry.Policy, error) {
	policy, err := policyFor(st.Policy)
	if err != nil {
		return retry.Policy{}, err
	}
	if st.MaxAttempts > 0 {
		policy.MaxAttempts = st.MaxAttempts
	}
	if st.BaseDelay > 0 {
		policy.BaseDelay = st.BaseDelay
		if policy.MaxDelay < st.BaseDelay {
			policy.MaxDelay = st.BaseDelay
		}
	}
	return policy, nil
}

// policyFor maps a plan policy name to a retry policy preset. An empty name
// selects the default.
func policyFor(name string) (retry.Policy, error) {
	switch name {
	case "", "default":
		return retry.DefaultPolicy(), nil
	case "llm":
		return retry.LLMAPIPolicy(), nil
	case "news":
		return retry.NewsFeedPolicy(), nil
	case "brand":
		return retry.BrandAPIPolicy(), nil
	default:
		return retry.Policy{}, fmt.Errorf("unknown policy: %s (must be default, llm, news, or brand)", name)
	}
}
