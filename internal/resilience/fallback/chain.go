package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"brandlens/internal/observability/metrics"
)

// ErrExhausted is returned when every provider in a chain, the cache
// included, failed to produce data.
var ErrExhausted = errors.New("all fallback providers exhausted")

// Config holds the configuration for a fallback chain.
type Config struct {
	// ProviderTimeout bounds each individual provider attempt.
	// A provider timing out counts as a failure for that provider only.
	ProviderTimeout time.Duration

	// CacheTTL is how long successful results stay servable from cache.
	CacheTTL time.Duration

	// PurgeInterval is how often the cache janitor removes expired
	// entries.
	PurgeInterval time.Duration

	// CacheQualityFactor scales a cached result's quality score down to
	// mark staleness. Zero means 0.8.
	CacheQualityFactor float64
}

// DefaultConfig returns a default fallback chain configuration.
func DefaultConfig() Config {
	return Config{
		ProviderTimeout:    30 * time.Second,
		CacheTTL:           1 * time.Hour,
		PurgeInterval:      5 * time.Minute,
		CacheQualityFactor: 0.8,
	}
}

// Chain holds fallback providers registered per resource class and tries
// them strictly in priority order. Registrations are read-only after
// configuration; the TTL cache tolerates concurrent stage access.
type Chain struct {
	cfg   Config
	cache *Cache

	mu        sync.RWMutex
	providers map[string][]Provider
}

// New creates a chain with the given configuration. Call Close when done
// to stop the cache janitor.
func New(cfg Config) *Chain {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.CacheQualityFactor <= 0 || cfg.CacheQualityFactor > 1 {
		cfg.CacheQualityFactor = 0.8
	}
	return &Chain{
		cfg:       cfg,
		cache:     NewCache(cfg.CacheTTL, cfg.PurgeInterval),
		providers: make(map[string][]Provider),
	}
}

// Register adds a provider for a resource class. Providers with equal
// priority keep registration order.
func (c *Chain) Register(resource string, p Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[resource] = append(c.providers[resource], p)
	sort.SliceStable(c.providers[resource], func(i, j int) bool {
		return c.providers[resource][i].Priority() < c.providers[resource][j].Priority()
	})
}

// HasProviders reports whether at least one provider is registered for the
// resource class. It implements classify.FallbackProbe.
func (c *Chain) HasProviders(resource string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.providers[resource]) > 0
}

// Resolve tries the resource's providers in priority order and returns the
// first successful result. A dedicated cache provider is always appended
// last, so an exhausted chain can still return stale-but-useful data.
// Successful non-cache results are written to the cache under req.Key.
func (c *Chain) Resolve(ctx context.Context, req Request) (*Result, error) {
	c.mu.RLock()
	providers := make([]Provider, len(c.providers[req.Resource]))
	copy(providers, c.providers[req.Resource])
	c.mu.RUnlock()

	providers = append(providers, &cacheProvider{chain: c})

	for _, p := range providers {
		result, err := c.attempt(ctx, p, req)
		fromCache := p.Priority() == priorityCache

		if err != nil || result == nil || !result.Success {
			metrics.RecordFallbackAttempt(req.Resource, p.Name(), false)
			slog.Warn("fallback provider failed, trying next",
				slog.String("resource", req.Resource),
				slog.String("key", req.Key),
				slog.String("provider", p.Name()),
				slog.String("priority", p.Priority().String()),
				slog.Any("error", err))
			// The caller's own context expiring dooms every
			// remaining provider too.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("fallback aborted for %q: %w", req.Key, ctx.Err())
			}
			continue
		}

		metrics.RecordFallbackAttempt(req.Resource, p.Name(), true)
		if fromCache {
			metrics.RecordFallbackCacheHit(req.Resource)
		} else {
			c.cache.Put(req.Key, *result)
		}
		slog.Info("fallback resolved",
			slog.String("resource", req.Resource),
			slog.String("key", req.Key),
			slog.String("provider", p.Name()),
			slog.Float64("quality_score", result.QualityScore),
			slog.Duration("execution_time", result.ExecutionTime))
		return result, nil
	}

	return nil, fmt.Errorf("resource %q: %w", req.Key, ErrExhausted)
}

// Close stops the cache janitor.
func (c *Chain) Close() {
	c.cache.Stop()
}

// attempt runs one provider under its own timeout and stamps the result
// with the provider name and execution time.
func (c *Chain) attempt(ctx context.Context, p Provider, req Request) (*Result, error) {
	tctx, cancel := context.WithTimeout(ctx, c.cfg.ProviderTimeout)
	defer cancel()

	start := time.Now()
	result, err := p.Attempt(tctx, req)
	if err != nil {
		return nil, err
	}
	if result != nil {
		result.ExecutionTime = time.Since(start)
		if result.Source == "" {
			result.Source = p.Name()
		}
	}
	return result, nil
}

// cacheProvider is the implicit lowest-priority provider serving cached
// results. The quality score is degraded to mark staleness.
type cacheProvider struct {
	chain *Chain
}

func (cp *cacheProvider) Name() string       { return "cache" }
func (cp *cacheProvider) Priority() Priority { return priorityCache }

func (cp *cacheProvider) Attempt(_ context.Context, req Request) (*Result, error) {
	cached, ok := cp.chain.cache.Get(req.Key)
	if !ok {
		return &Result{Success: false}, nil
	}
	cached.Source = "cache"
	cached.QualityScore *= cp.chain.cfg.CacheQualityFactor
	// Copy before appending so the stored entry keeps its own limitations.
	cached.Limitations = append(append([]string(nil), cached.Limitations...),
		"served from cache; data may be stale")
	return &cached, nil
}
