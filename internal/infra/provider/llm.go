package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"brandlens/internal/domain/entity"
)

// LLMProbeConfig holds configuration parameters for the LLM visibility
// prober. Configuration is loaded from environment variables with fallback
// to defaults.
type LLMProbeConfig struct {
	// Model is the Anthropic API model identifier used for probing.
	Model string

	// MaxTokens is the maximum number of tokens for each API response.
	MaxTokens int

	// PromptCount is how many probe prompts are issued per audit.
	// Loaded from LLM_PROBE_PROMPTS. Valid range: 1-20. Default: 5.
	PromptCount int

	// Timeout is the maximum duration for a single probe call.
	Timeout time.Duration
}

// LoadLLMProbeConfig loads configuration from environment variables.
// Invalid values fall back to the default with a warning log.
//
// Environment variables:
//   - LLM_PROBE_PROMPTS: Prompts per audit (default: 5, range: 1-20)
func LoadLLMProbeConfig() LLMProbeConfig {
	const (
		defaultPrompts = 5
		minPrompts     = 1
		maxPrompts     = 20
	)

	prompts := defaultPrompts
	if envPrompts := os.Getenv("LLM_PROBE_PROMPTS"); envPrompts != "" {
		parsed, err := strconv.Atoi(envPrompts)
		if err != nil {
			slog.Warn("Invalid LLM_PROBE_PROMPTS format, using default",
				slog.String("value", envPrompts),
				slog.Int("default", defaultPrompts),
				slog.String("error", err.Error()))
		} else if parsed < minPrompts || parsed > maxPrompts {
			slog.Warn("LLM_PROBE_PROMPTS out of valid range, using default",
				slog.Int("value", parsed),
				slog.Int("min", minPrompts),
				slog.Int("max", maxPrompts),
				slog.Int("default", defaultPrompts))
		} else {
			prompts = parsed
		}
	}

	return LLMProbeConfig{
		Model:       string(anthropic.Model("claude-sonnet-4-5-20250929")),
		MaxTokens:   1024,
		PromptCount: prompts,
		Timeout:     60 * time.Second,
	}
}

// LLMProber probes an LLM with consumer-style questions and measures how
// often the brand surfaces in the answers. It carries no retry or breaker
// logic of its own.
type LLMProber struct {
	client anthropic.Client
	config LLMProbeConfig
}

// NewLLMProber creates a new LLMProber with the given API key.
func NewLLMProber(apiKey string) *LLMProber {
	config := LoadLLMProbeConfig()

	slog.Info("Initialized LLM prober with configuration",
		slog.String("model", config.Model),
		slog.Int("prompt_count", config.PromptCount))

	return &LLMProber{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		config: config,
	}
}

// Probe issues the configured number of prompts and counts brand mentions
// in the responses. The visibility score is the mention rate in [0,1].
func (p *LLMProber) Probe(ctx context.Context, brand *entity.Brand) (*VisibilityReport, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	requestID := uuid.New().String()
	prompts := buildProbePrompts(brand, p.config.PromptCount)

	slog.InfoContext(ctx, "Starting LLM visibility probe",
		slog.String("request_id", requestID),
		slog.String("brand", brand.Slug),
		slog.Int("prompts", len(prompts)))

	start := time.Now()
	report := &VisibilityReport{
		Brand:    brand.Name,
		Model:    p.config.Model,
		Prompts:  len(prompts),
		ProbedAt: start,
	}

	for _, prompt := range prompts {
		answer, err := p.ask(ctx, prompt)
		if err != nil {
			return nil, err
		}
		if mentionsBrand(answer, brand) {
			report.Mentions++
			report.Excerpts = append(report.Excerpts, excerpt(answer, brand.Name))
		}
	}

	if report.Prompts > 0 {
		report.Score = float64(report.Mentions) / float64(report.Prompts)
	}

	slog.InfoContext(ctx, "LLM visibility probe completed",
		slog.String("request_id", requestID),
		slog.String("brand", brand.Slug),
		slog.Int("mentions", report.Mentions),
		slog.Float64("score", report.Score),
		slog.Duration("duration", time.Since(start)))

	return report, nil
}

// ask performs one API call and extracts the text response.
func (p *LLMProber) ask(ctx context.Context, prompt string) (string, error) {
	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: int64(p.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	if len(message.Content) == 0 {
		return "", fmt.Errorf("anthropic api returned empty response")
	}
	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("anthropic api returned unexpected response type")
	}
	return textBlock.Text, nil
}

// buildProbePrompts generates consumer-style questions in the brand's
// category. Competitor names are included so answers reflect a realistic
// consideration set rather than leading with the brand.
func buildProbePrompts(brand *entity.Brand, count int) []string {
	templates := []string{
		"What are the best companies for someone looking for products like those from the %s industry?",
		"I'm comparing options before buying. Which brands would you recommend and why?",
		"List well-known brands a consumer should consider in this space: %s.",
		"Which companies are leaders in the market that includes %s?",
		"What brands come to mind for high quality in the category of %s?",
	}

	category := strings.Join(brand.Competitors, ", ")
	if category == "" {
		category = brand.Name
	}

	prompts := make([]string, 0, count)
	for i := 0; i < count; i++ {
		tmpl := templates[i%len(templates)]
		if strings.Contains(tmpl, "%s") {
			prompts = append(prompts, fmt.Sprintf(tmpl, category))
		} else {
			prompts = append(prompts, tmpl)
		}
	}
	return prompts
}

// mentionsBrand reports whether the answer references the brand by name or
// slug, case-insensitively.
func mentionsBrand(answer string, brand *entity.Brand) bool {
	lower := strings.ToLower(answer)
	return strings.Contains(lower, strings.ToLower(brand.Name)) ||
		strings.Contains(lower, strings.ReplaceAll(brand.Slug, "-", " "))
}

// excerpt returns a short window of the answer around the first brand
// mention, for inclusion in the audit report.
func excerpt(answer, name string) string {
	const window = 120

	idx := strings.Index(strings.ToLower(answer), strings.ToLower(name))
	if idx < 0 {
		return ""
	}
	start := idx - window/2
	if start < 0 {
		start = 0
	}
	end := idx + len(name) + window/2
	if end > len(answer) {
		end = len(answer)
	}
	return strings.TrimSpace(answer[start:end])
}
