package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"brandlens/internal/domain/entity"
	"brandlens/internal/resilience/classify"
	"brandlens/internal/resilience/fallback"
)

const maxBodySize = 10 * 1024 * 1024 // 10MB

// BrandDataClient retrieves structured brand profiles from the brand-data
// API. Requests are rate limited with a token bucket so audit fan-out never
// exceeds the API's contract.
type BrandDataClient struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewBrandDataClient creates a client for the brand-data API.
//
// requestsPerSecond and burst configure the token bucket: up to burst
// requests immediately, refilled at requestsPerSecond.
func NewBrandDataClient(client *http.Client, baseURL string, requestsPerSecond float64, burst int) *BrandDataClient {
	return &BrandDataClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Profile fetches the profile for the given brand. Non-2xx responses are
// returned as classifiable HTTP errors carrying the status code and, for
// 429, the server's Retry-After hint.
func (c *BrandDataClient) Profile(ctx context.Context, brand *entity.Brand) (*BrandProfile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/brands/%s", c.baseURL, url.PathEscape(brand.Slug))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brand data request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpError(resp)
	}

	var profile BrandProfile
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode brand profile: %w", err)
	}
	if profile.Name == "" {
		profile.Name = brand.Name
	}
	return &profile, nil
}

// httpError converts a non-2xx response into a classifiable error,
// preserving the Retry-After header on 429.
func httpError(resp *http.Response) error {
	herr := &classify.HTTPError{
		StatusCode: resp.StatusCode,
		Message:    resp.Status,
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := time.ParseDuration(ra + "s"); err == nil {
				herr.RetryAfter = secs
			}
		}
	}
	return herr
}

// BrandScrapeProvider is the degraded path for the brand-data stage: when
// the API is unreachable, the brand's own website is scraped for a minimal
// profile. It implements fallback.Provider.
type BrandScrapeProvider struct {
	client *http.Client
}

// NewBrandScrapeProvider creates the scrape provider with the given HTTP
// client.
func NewBrandScrapeProvider(client *http.Client) *BrandScrapeProvider {
	return &BrandScrapeProvider{client: client}
}

// Name implements fallback.Provider.
func (p *BrandScrapeProvider) Name() string { return "website_scrape" }

// Priority implements fallback.Provider.
func (p *BrandScrapeProvider) Priority() fallback.Priority { return fallback.PriorityMedium }

// Attempt scrapes title, meta description, and meta keywords from the
// brand's website into a minimal profile.
func (p *BrandScrapeProvider) Attempt(ctx context.Context, req fallback.Request) (*fallback.Result, error) {
	brand, err := brandFromArgs(req.Args)
	if err != nil {
		return nil, err
	}
	if brand.Website == "" {
		// Nothing to scrape; let the chain move on.
		return &fallback.Result{Success: false}, nil
	}
	if err := validateFetchURL(brand.Website); err != nil {
		return nil, fmt.Errorf("website validation failed: %w", err)
	}

	doc, err := p.fetchHTML(ctx, brand.Website)
	if err != nil {
		return nil, err
	}

	profile := &BrandProfile{Name: brand.Name}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		profile.Name = title
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		profile.Description = strings.TrimSpace(desc)
	}
	if profile.Description == "" {
		if og, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
			profile.Description = strings.TrimSpace(og)
		}
	}
	if kw, ok := doc.Find(`meta[name="keywords"]`).Attr("content"); ok {
		for _, k := range strings.Split(kw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				profile.Keywords = append(profile.Keywords, k)
			}
		}
	}

	if profile.Description == "" && len(profile.Keywords) == 0 {
		return &fallback.Result{Success: false}, nil
	}

	return &fallback.Result{
		Success:      true,
		Data:         profile,
		QualityScore: 0.6,
		Limitations:  []string{"scraped from the brand website, not the brand-data API"},
	}, nil
}

// validateFetchURL checks if a URL is safe to fetch (SSRF prevention).
// Loopback addresses on ephemeral ports are allowed so httptest servers
// remain reachable.
func validateFetchURL(urlStr string) error {
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s (only http/https allowed)", u.Scheme)
	}

	if u.Hostname() == "127.0.0.1" && u.Port() != "" {
		portNum := 0
		if _, err := fmt.Sscanf(u.Port(), "%d", &portNum); err == nil {
			if portNum >= 32768 && portNum <= 65535 {
				return nil
			}
		}
	}

	if err := entity.ValidateURL(urlStr); err != nil {
		return err
	}
	return nil
}

// fetchHTML fetches and parses HTML from the given URL, capping the body
// size.
func (p *BrandScrapeProvider) fetchHTML(ctx context.Context, urlStr string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "BrandLensBot")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch website: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpError(resp)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return doc, nil
}
