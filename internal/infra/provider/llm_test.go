package provider

import (
	"strings"
	"testing"

	"brandlens/internal/domain/entity"
)

func TestBuildProbePrompts_Count(t *testing.T) {
	brand := &entity.Brand{Name: "Acme", Slug: "acme", Competitors: []string{"globex", "initech"}}

	for _, count := range []int{1, 5, 12} {
		prompts := buildProbePrompts(brand, count)
		if len(prompts) != count {
			t.Errorf("buildProbePrompts(%d) returned %d prompts", count, len(prompts))
		}
	}
}

// Probe prompts must never lead with the brand itself, or the mention rate
// would measure prompt echo instead of organic visibility.
func TestBuildProbePrompts_DoNotLeadWithBrand(t *testing.T) {
	brand := &entity.Brand{Name: "Acme", Slug: "acme", Competitors: []string{"globex"}}

	for i, prompt := range buildProbePrompts(brand, 5) {
		if containsFold(prompt, "acme") {
			t.Errorf("prompt %d mentions the brand: %q", i, prompt)
		}
	}
}

func TestMentionsBrand(t *testing.T) {
	brand := &entity.Brand{Name: "Acme Corp", Slug: "acme-corp"}

	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{"exact", "I recommend Acme Corp for this.", true},
		{"case insensitive", "ACME CORP is well known.", true},
		{"slug words", "Consider acme corp or Globex.", true},
		{"absent", "Globex and Initech are the leaders.", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mentionsBrand(tt.answer, brand); got != tt.want {
				t.Errorf("mentionsBrand(%q) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}

func TestExcerpt(t *testing.T) {
	answer := "Among the many options available to consumers today, Acme Corp stands out for durability and price, though Globex has a wider catalog."

	got := excerpt(answer, "Acme Corp")
	if got == "" {
		t.Fatal("excerpt returned empty string")
	}
	if !containsFold(got, "acme corp") {
		t.Errorf("excerpt %q does not contain the brand", got)
	}
	if len(got) > len(answer) {
		t.Errorf("excerpt longer than the answer")
	}
}

func TestExcerpt_NoMention(t *testing.T) {
	if got := excerpt("nothing relevant here", "Acme"); got != "" {
		t.Errorf("excerpt = %q, want empty", got)
	}
}

func TestLoadLLMProbeConfig_Defaults(t *testing.T) {
	t.Setenv("LLM_PROBE_PROMPTS", "")

	config := LoadLLMProbeConfig()
	if config.PromptCount != 5 {
		t.Errorf("PromptCount = %d, want 5", config.PromptCount)
	}
	if config.Model == "" {
		t.Error("Model is empty")
	}
}

func TestLoadLLMProbeConfig_EnvOverride(t *testing.T) {
	t.Setenv("LLM_PROBE_PROMPTS", "12")

	if got := LoadLLMProbeConfig().PromptCount; got != 12 {
		t.Errorf("PromptCount = %d, want 12", got)
	}
}

func TestLoadLLMProbeConfig_InvalidFallsBack(t *testing.T) {
	for _, v := range []string{"abc", "0", "100", "-3"} {
		t.Setenv("LLM_PROBE_PROMPTS", v)
		if got := LoadLLMProbeConfig().PromptCount; got != 5 {
			t.Errorf("PromptCount with %q = %d, want default 5", v, got)
		}
	}
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
