package provider_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"brandlens/internal/infra/provider"
	"brandlens/internal/resilience/classify"
	"brandlens/internal/resilience/fallback"
)

func TestBrandDataClient_Profile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/brands/acme" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "Acme Corp",
			"description": "Industrial equipment manufacturer",
			"industry": "manufacturing",
			"keywords": ["anvils", "rockets"]
		}`))
	}))
	defer server.Close()

	client := provider.NewBrandDataClient(&http.Client{Timeout: 5 * time.Second}, server.URL, 10, 5)

	profile, err := client.Profile(context.Background(), acme())
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if profile.Name != "Acme Corp" {
		t.Errorf("Name = %q, want Acme Corp", profile.Name)
	}
	if profile.Industry != "manufacturing" {
		t.Errorf("Industry = %q", profile.Industry)
	}
	if len(profile.Keywords) != 2 {
		t.Errorf("Keywords = %v", profile.Keywords)
	}
}

func TestBrandDataClient_RateLimitedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := provider.NewBrandDataClient(&http.Client{Timeout: 5 * time.Second}, server.URL, 10, 5)

	_, err := client.Profile(context.Background(), acme())
	if err == nil {
		t.Fatal("Profile() error = nil, want error")
	}

	var herr *classify.HTTPError
	if !errors.As(err, &herr) {
		t.Fatalf("error %v is not an HTTP error", err)
	}
	if herr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", herr.StatusCode)
	}
	if herr.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", herr.RetryAfter)
	}
}

func TestBrandDataClient_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := provider.NewBrandDataClient(&http.Client{Timeout: 5 * time.Second}, server.URL, 10, 5)

	_, err := client.Profile(context.Background(), acme())
	var herr *classify.HTTPError
	if !errors.As(err, &herr) || herr.StatusCode != http.StatusNotFound {
		t.Fatalf("error = %v, want HTTP 404", err)
	}
}

func TestBrandScrapeProvider_Attempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!doctype html>
<html><head>
<title>Acme Corp - Industrial Equipment</title>
<meta name="description" content="Acme builds industrial equipment since 1949.">
<meta name="keywords" content="anvils, rockets, ">
</head><body></body></html>`))
	}))
	defer server.Close()

	brand := acme()
	brand.Website = server.URL

	scraper := provider.NewBrandScrapeProvider(&http.Client{Timeout: 5 * time.Second})
	result, err := scraper.Attempt(context.Background(), fallback.Request{
		Resource: "brand",
		Key:      brand.CacheKey(),
		Args:     map[string]any{"brand": brand},
	})
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if !result.Success {
		t.Fatal("Success = false, want true")
	}

	profile, ok := result.Data.(*provider.BrandProfile)
	if !ok {
		t.Fatalf("Data type = %T, want *BrandProfile", result.Data)
	}
	if profile.Name != "Acme Corp - Industrial Equipment" {
		t.Errorf("Name = %q", profile.Name)
	}
	if profile.Description != "Acme builds industrial equipment since 1949." {
		t.Errorf("Description = %q", profile.Description)
	}
	if len(profile.Keywords) != 2 {
		t.Errorf("Keywords = %v, want 2 entries", profile.Keywords)
	}
	if len(result.Limitations) == 0 {
		t.Error("degraded result carries no limitations")
	}
	if result.QualityScore >= 1.0 {
		t.Errorf("QualityScore = %v, want < 1.0", result.QualityScore)
	}
}

func TestBrandScrapeProvider_NoWebsite(t *testing.T) {
	scraper := provider.NewBrandScrapeProvider(http.DefaultClient)
	result, err := scraper.Attempt(context.Background(), fallback.Request{
		Resource: "brand",
		Key:      "brand_acme",
		Args:     map[string]any{"brand": acme()},
	})
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if result.Success {
		t.Error("Success = true for brand without website")
	}
}

func TestBrandScrapeProvider_MissingBrandArg(t *testing.T) {
	scraper := provider.NewBrandScrapeProvider(http.DefaultClient)
	if _, err := scraper.Attempt(context.Background(), fallback.Request{Resource: "brand"}); err == nil {
		t.Fatal("Attempt() error = nil, want error")
	}
}
