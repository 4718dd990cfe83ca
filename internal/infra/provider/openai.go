package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"brandlens/internal/domain/entity"
	"brandlens/internal/resilience/fallback"
)

// OpenAIVisibilityProvider is the degraded path for the LLM visibility
// stage: when the primary model is unreachable, the same probe runs against
// OpenAI's API. It implements fallback.Provider.
type OpenAIVisibilityProvider struct {
	client      *openai.Client
	model       string
	promptCount int
	timeout     time.Duration
}

// NewOpenAIVisibilityProvider creates the provider with the given API key.
func NewOpenAIVisibilityProvider(apiKey string) *OpenAIVisibilityProvider {
	config := LoadLLMProbeConfig()

	slog.Info("Initialized OpenAI visibility fallback provider",
		slog.Int("prompt_count", config.PromptCount))

	return &OpenAIVisibilityProvider{
		client:      openai.NewClient(apiKey),
		model:       openai.GPT4oMini,
		promptCount: config.PromptCount,
		timeout:     config.Timeout,
	}
}

// Name implements fallback.Provider.
func (p *OpenAIVisibilityProvider) Name() string { return "openai_visibility" }

// Priority implements fallback.Provider.
func (p *OpenAIVisibilityProvider) Priority() fallback.Priority { return fallback.PriorityHigh }

// Attempt runs the visibility probe against OpenAI. The result is tagged
// with a reduced quality score since the audited model differs from the
// primary one.
func (p *OpenAIVisibilityProvider) Attempt(ctx context.Context, req fallback.Request) (*fallback.Result, error) {
	brand, err := brandFromArgs(req.Args)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	prompts := buildProbePrompts(brand, p.promptCount)
	report := &VisibilityReport{
		Brand:    brand.Name,
		Model:    p.model,
		Prompts:  len(prompts),
		ProbedAt: time.Now(),
	}

	for _, prompt := range prompts {
		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: p.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("openai api error: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("openai api returned no choices")
		}

		answer := resp.Choices[0].Message.Content
		if mentionsBrand(answer, brand) {
			report.Mentions++
			report.Excerpts = append(report.Excerpts, excerpt(answer, brand.Name))
		}
	}
	if report.Prompts > 0 {
		report.Score = float64(report.Mentions) / float64(report.Prompts)
	}

	return &fallback.Result{
		Success:      true,
		Data:         report,
		QualityScore: 0.8,
		Limitations:  []string{"probed a secondary model, not the primary audit target"},
	}, nil
}

// brandFromArgs extracts the brand entity the fallback chain carries in the
// request arguments.
func brandFromArgs(args map[string]any) (*entity.Brand, error) {
	brand, ok := args["brand"].(*entity.Brand)
	if !ok || brand == nil {
		return nil, errors.New("fallback request is missing the brand argument")
	}
	return brand, nil
}
