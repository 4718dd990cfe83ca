package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"brandlens/internal/audit/orchestrator"
	"brandlens/internal/audit/progress"
	"brandlens/internal/domain/entity"
	"brandlens/internal/infra/provider"
	"brandlens/internal/resilience/retry"
)

// VisibilityProber probes an LLM for brand visibility.
type VisibilityProber interface {
	Probe(ctx context.Context, brand *entity.Brand) (*provider.VisibilityReport, error)
}

// MentionFetcher collects news mentions for a brand.
type MentionFetcher interface {
	FetchMentions(ctx context.Context, brand *entity.Brand) ([]provider.Mention, error)
}

// ProfileClient retrieves a structured brand profile.
type ProfileClient interface {
	Profile(ctx context.Context, brand *entity.Brand) (*provider.BrandProfile, error)
}

// Service binds plan stages to their data-source operations and executes
// them through the orchestrator.
type Service struct {
	orch    *orchestrator.Orchestrator
	prober  VisibilityProber
	news    MentionFetcher
	profile ProfileClient
}

// NewService creates a Service. A nil collaborator disables the stages
// bound to it; plans naming such a stage fail at bind time.
func NewService(orch *orchestrator.Orchestrator, prober VisibilityProber, news MentionFetcher, profile ProfileClient) *Service {
	return &Service{
		orch:    orch,
		prober:  prober,
		news:    news,
		profile: profile,
	}
}

// Run executes the plan's stages for its brand and returns the audit run
// record alongside the raw orchestration result. The run record reflects
// partial failure faithfully: each stage carries its own status, source,
// and limitations.
func (s *Service) Run(ctx context.Context, plan *Plan, sink progress.Sink) (*entity.AuditRun, *orchestrator.Result, error) {
	stages, err := s.bindStages(plan)
	if err != nil {
		return nil, nil, err
	}

	run := &entity.AuditRun{
		ID:        uuid.New().String(),
		BrandID:   plan.Brand.ID,
		Status:    entity.AuditProcessing,
		StartedAt: time.Now(),
	}

	result, runErr := s.orch.Run(ctx, run.ID, stages, sink)

	run.Stages = stageRecords(plan, result)
	switch {
	case runErr != nil:
		run.Settle(entity.AuditError, time.Now())
	case result.Succeeded():
		run.Settle(entity.AuditCompleted, time.Now())
	default:
		run.Settle(entity.AuditError, time.Now())
	}

	return run, result, runErr
}

// bindStages turns plan stages into executable orchestrator stages.
func (s *Service) bindStages(plan *Plan) ([]orchestrator.Stage, error) {
	brand := &plan.Brand

	stages := make([]orchestrator.Stage, 0, len(plan.Stages))
	for _, ps := range plan.Stages {
		op, err := s.operationFor(ps.Name, brand)
		if err != nil {
			return nil, err
		}

		// Validate already vetted the policy name.
		policy, _ := resolvePolicy(ps)

		stages = append(stages, orchestrator.Stage{
			Name:              ps.Name,
			Resource:          ps.Resource,
			Key:               cacheKey(ps.Resource, brand),
			Policy:            policy,
			Operation:         op,
			EstimatedDuration: ps.EstimatedDuration,
			Substeps:          ps.Substeps,
			FallbackArgs:      map[string]any{"brand": brand},
		})
	}
	return stages, nil
}

// operationFor maps a stage name to the collaborator call that implements
// it.
func (s *Service) operationFor(name string, brand *entity.Brand) (retry.Operation, error) {
	switch name {
	case StageLLMVisibility:
		if s.prober == nil {
			return nil, fmt.Errorf("stage %s: no LLM prober configured", name)
		}
		return func(ctx context.Context) (any, error) {
			return s.prober.Probe(ctx, brand)
		}, nil
	case StageNewsMentions:
		if s.news == nil {
			return nil, fmt.Errorf("stage %s: no news fetcher configured", name)
		}
		return func(ctx context.Context) (any, error) {
			return s.news.FetchMentions(ctx, brand)
		}, nil
	case StageBrandData:
		if s.profile == nil {
			return nil, fmt.Errorf("stage %s: no brand-data client configured", name)
		}
		return func(ctx context.Context) (any, error) {
			return s.profile.Profile(ctx, brand)
		}, nil
	default:
		return nil, fmt.Errorf("unknown stage: %s", name)
	}
}

// cacheKey builds the fallback cache key for a stage's resource class,
// e.g. "brand_acme".
func cacheKey(resource string, brand *entity.Brand) string {
	if resource == "" {
		return ""
	}
	return resource + "_" + brand.Slug
}

// stageRecords converts orchestration outcomes into audit run records, in
// plan order.
func stageRecords(plan *Plan, result *orchestrator.Result) []entity.StageRecord {
	records := make([]entity.StageRecord, 0, len(plan.Stages))
	for _, ps := range plan.Stages {
		out, ok := result.Outcomes[ps.Name]
		if !ok {
			continue
		}

		rec := entity.StageRecord{
			Name:     ps.Name,
			Status:   string(out.Status),
			Attempts: out.Attempts,
			Duration: out.Duration,
		}
		switch out.Status {
		case orchestrator.StageSucceeded:
			rec.Source = "primary"
			rec.Quality = 1.0
		case orchestrator.StageFellBack:
			rec.Source = out.Fallback.Source
			rec.Quality = out.Fallback.QualityScore
			rec.Limitations = out.Fallback.Limitations
		case orchestrator.StageFailed:
			if out.Err != nil {
				rec.UserMessage = out.Err.UserMessage
			}
		}
		records = append(records, rec)
	}
	return records
}
