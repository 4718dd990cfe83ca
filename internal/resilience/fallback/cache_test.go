package fallback

import (
	"sync"
	"testing"
	"time"
)

func TestCache_PutGet(t *testing.T) {
	c := NewCache(time.Hour, time.Hour)
	defer c.Stop()

	c.Put("brand_acme", Result{Success: true, Data: "cached", Source: "api"})

	got, ok := c.Get("brand_acme")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Data != "cached" {
		t.Errorf("expected data='cached', got %v", got.Data)
	}

	if _, ok := c.Get("brand_other"); ok {
		t.Error("expected cache miss for unknown key")
	}
}

func TestCache_TTLHardCutoff(t *testing.T) {
	c := NewCache(3600*time.Second, time.Hour)
	defer c.Stop()

	base := time.Now()
	now := base
	c.now = func() time.Time { return now }

	c.Put("brand_acme", Result{Success: true, Data: "v1"})

	// Retrievable one second before expiry.
	now = base.Add(3599 * time.Second)
	if _, ok := c.Get("brand_acme"); !ok {
		t.Error("expected entry to be retrievable at T+3599s")
	}

	// Absent one second after expiry; expiry does not slide on reads.
	now = base.Add(3601 * time.Second)
	if _, ok := c.Get("brand_acme"); ok {
		t.Error("expected entry to be absent at T+3601s")
	}

	// The expired entry was removed lazily.
	if c.Len() != 0 {
		t.Errorf("expected lazy purge on lookup, %d entries remain", c.Len())
	}
}

func TestCache_PeriodicPurge(t *testing.T) {
	c := NewCache(time.Hour, time.Hour)
	defer c.Stop()

	base := time.Now()
	now := base
	c.now = func() time.Time { return now }

	c.Put("a", Result{Success: true})
	c.Put("b", Result{Success: true})

	now = base.Add(2 * time.Hour)
	c.purge()

	if c.Len() != 0 {
		t.Errorf("expected purge to remove expired entries, %d remain", c.Len())
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache(time.Hour, time.Hour)
	defer c.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Put("shared", Result{Success: true, Data: j})
				c.Get("shared")
			}
		}()
	}
	wg.Wait()

	if _, ok := c.Get("shared"); !ok {
		t.Error("expected entry to survive concurrent writes")
	}
}

func TestCache_StopIsIdempotent(t *testing.T) {
	c := NewCache(time.Hour, time.Millisecond)
	c.Stop()
	c.Stop()
}
