package fallback

import (
	"context"
	"errors"
	"testing"
	"time"
)

// stubProvider is a scripted fallback provider for chain tests.
type stubProvider struct {
	name     string
	priority Priority
	result   *Result
	err      error
	delay    time.Duration
	calls    int
}

func (p *stubProvider) Name() string       { return p.name }
func (p *stubProvider) Priority() Priority { return p.priority }

func (p *stubProvider) Attempt(ctx context.Context, req Request) (*Result, error) {
	p.calls++
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.result, p.err
}

func succeeding(name string, priority Priority) *stubProvider {
	return &stubProvider{
		name:     name,
		priority: priority,
		result:   &Result{Success: true, Data: name + "-data", QualityScore: 0.7},
	}
}

func failing(name string, priority Priority) *stubProvider {
	return &stubProvider{name: name, priority: priority, err: errors.New(name + " failed")}
}

func testChain() *Chain {
	return New(Config{
		ProviderTimeout: 100 * time.Millisecond,
		CacheTTL:        time.Hour,
		PurgeInterval:   time.Hour,
	})
}

func TestChain_PriorityOrder(t *testing.T) {
	c := testChain()
	defer c.Close()

	p1 := failing("P1", PriorityHigh)
	p2 := succeeding("P2", PriorityMedium)
	p3 := succeeding("P3", PriorityLow)
	// Register out of order; the chain must still try by priority.
	c.Register("brand", p3)
	c.Register("brand", p1)
	c.Register("brand", p2)

	result, err := c.Resolve(context.Background(), Request{Resource: "brand", Key: "brand_acme"})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Source != "P2" {
		t.Errorf("expected source=P2, got %q", result.Source)
	}
	if p1.calls != 1 {
		t.Errorf("expected P1 to be tried once, got %d", p1.calls)
	}
	if p3.calls != 0 {
		t.Errorf("expected P3 never to be invoked, got %d calls", p3.calls)
	}
}

func TestChain_ProviderTimeoutMovesOn(t *testing.T) {
	c := testChain()
	defer c.Close()

	slow := succeeding("slow", PriorityHigh)
	slow.delay = time.Second // beyond the 100ms provider timeout
	fast := succeeding("fast", PriorityMedium)
	c.Register("brand", slow)
	c.Register("brand", fast)

	result, err := c.Resolve(context.Background(), Request{Resource: "brand", Key: "brand_acme"})

	if err != nil {
		t.Fatalf("expected the chain to move past the slow provider, got %v", err)
	}
	if result.Source != "fast" {
		t.Errorf("expected source=fast, got %q", result.Source)
	}
}

func TestChain_ExhaustedWithEmptyCache(t *testing.T) {
	c := testChain()
	defer c.Close()

	c.Register("brand", failing("P1", PriorityHigh))

	_, err := c.Resolve(context.Background(), Request{Resource: "brand", Key: "brand_acme"})

	if !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
}

func TestChain_CacheServesWhenExhausted(t *testing.T) {
	c := testChain()
	defer c.Close()

	flaky := succeeding("flaky", PriorityHigh)
	c.Register("brand", flaky)

	req := Request{Resource: "brand", Key: "brand_acme"}

	// First resolve succeeds and populates the cache.
	first, err := c.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("expected first resolve to succeed, got %v", err)
	}
	if first.Source != "flaky" {
		t.Fatalf("expected source=flaky, got %q", first.Source)
	}

	// The provider now fails; the cache provider must serve.
	flaky.result = nil
	flaky.err = errors.New("provider down")

	second, err := c.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("expected cached result, got %v", err)
	}
	if second.Source != "cache" {
		t.Errorf("expected source=cache, got %q", second.Source)
	}
	if second.QualityScore >= first.QualityScore {
		t.Errorf("expected cached quality %v to be degraded below %v",
			second.QualityScore, first.QualityScore)
	}
	found := false
	for _, l := range second.Limitations {
		if l == "served from cache; data may be stale" {
			found = true
		}
	}
	if !found {
		t.Error("expected a staleness limitation on the cached result")
	}
}

func TestChain_HasProviders(t *testing.T) {
	c := testChain()
	defer c.Close()

	if c.HasProviders("brand") {
		t.Error("expected no providers before registration")
	}
	c.Register("brand", succeeding("P1", PriorityHigh))
	if !c.HasProviders("brand") {
		t.Error("expected providers after registration")
	}
	if c.HasProviders("news") {
		t.Error("expected no providers for unregistered resource")
	}
}

func TestChain_UnsuccessfulResultMovesOn(t *testing.T) {
	c := testChain()
	defer c.Close()

	soft := &stubProvider{
		name:     "soft-fail",
		priority: PriorityHigh,
		result:   &Result{Success: false},
	}
	backup := succeeding("backup", PriorityLow)
	c.Register("news", soft)
	c.Register("news", backup)

	result, err := c.Resolve(context.Background(), Request{Resource: "news", Key: "news_acme"})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Source != "backup" {
		t.Errorf("expected source=backup, got %q", result.Source)
	}
}

func TestChain_CanceledContextAborts(t *testing.T) {
	c := testChain()
	defer c.Close()

	slow := succeeding("slow", PriorityHigh)
	slow.delay = time.Second
	never := succeeding("never", PriorityLow)
	c.Register("brand", slow)
	c.Register("brand", never)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.Resolve(ctx, Request{Resource: "brand", Key: "brand_acme"})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if never.calls != 0 {
		t.Errorf("expected later providers to be skipped after cancellation, got %d calls", never.calls)
	}
}
