package fallback

import (
	"sync"
	"time"
)

// Cache is an in-process TTL cache for fallback results, keyed by logical
// resource key. Expiry is a hard cutoff, not sliding: entries are purged
// lazily on lookup and periodically by a janitor goroutine. Safe for
// concurrent use.
type Cache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry

	stop chan struct{}
	once sync.Once

	// now is replaceable in tests.
	now func() time.Time
}

type cacheEntry struct {
	result    Result
	expiresAt time.Time
}

// NewCache creates a cache with the given TTL and starts a janitor that
// purges expired entries every purgeInterval. Call Stop when done.
func NewCache(ttl, purgeInterval time.Duration) *Cache {
	c := &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	go c.janitor(purgeInterval)
	return c
}

// Put stores a result under the key. The entry expires TTL from now.
func (c *Cache) Put(key string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		result:    result,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Get returns the cached result for the key if it has not expired.
// An expired entry is removed on the spot.
func (c *Cache) Get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return Result{}, false
	}
	return entry.result, true
}

// Len returns the number of entries, expired ones included until purged.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop shuts down the janitor goroutine. Idempotent.
func (c *Cache) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache) janitor(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.purge()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
