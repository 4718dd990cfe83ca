// Package entity defines the core domain entities and validation logic for
// the application. It contains the fundamental business objects such as Brand
// and AuditRun, along with their validation rules and domain-specific errors.
package entity

import (
	"fmt"
	"regexp"
	"time"
)

// maxBrandNameLength caps brand names to keep prompts and cache keys bounded.
const maxBrandNameLength = 200

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Brand represents a brand under audit. Slug is the stable identifier used
// in cache keys and progress channels; Name is the display form fed to the
// data sources.
type Brand struct {
	ID          int64
	Name        string
	Slug        string
	Website     string
	Competitors []string
	CreatedAt   time.Time
}

// Validate validates the Brand entity fields.
func (b *Brand) Validate() error {
	if b.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if len(b.Name) > maxBrandNameLength {
		return &ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("name must not exceed %d characters", maxBrandNameLength),
		}
	}
	if b.Slug == "" {
		return &ValidationError{Field: "slug", Message: "slug is required"}
	}
	if !slugPattern.MatchString(b.Slug) {
		return &ValidationError{
			Field:   "slug",
			Message: "slug must be lowercase alphanumeric with single hyphens",
		}
	}
	if b.Website != "" {
		if err := ValidateURL(b.Website); err != nil {
			return err
		}
	}
	return nil
}

// CacheKey returns the logical resource key for this brand's fallback cache
// entries, e.g. "brand_acme".
func (b *Brand) CacheKey() string {
	return "brand_" + b.Slug
}
