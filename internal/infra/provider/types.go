// Package provider implements the concrete data-source adapters the audit
// stages call: LLM visibility probing, news-mention collection, and
// brand-profile retrieval. Each adapter surfaces failures as classifiable
// errors and stays free of retry and breaker logic, which the execution
// core layers on top.
package provider

import "time"

// VisibilityReport is the result of probing an LLM for brand visibility.
type VisibilityReport struct {
	Brand     string    `json:"brand"`
	Model     string    `json:"model"`
	Prompts   int       `json:"prompts"`
	Mentions  int       `json:"mentions"`
	Score     float64   `json:"score"`
	Excerpts  []string  `json:"excerpts,omitempty"`
	ProbedAt  time.Time `json:"probed_at"`
}

// Mention is one news item that references the brand.
type Mention struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Feed        string    `json:"feed"`
	PublishedAt time.Time `json:"published_at"`
}

// BrandProfile is structured brand data from the brand-data API, or a
// degraded approximation scraped from the brand's own website.
type BrandProfile struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Industry    string   `json:"industry,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}
