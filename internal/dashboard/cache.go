package dashboard

import (
	"sync"
	"time"
)

// cacheEntry is one cached query result.
type cacheEntry struct {
	payload     interface{}
	generatedAt time.Time
}

// queryCache is a TTL cache keyed by query name plus filter parameters.
// Entries expire by TTL only; writes elsewhere never invalidate them.
// Expired entries are kept so handlers can serve stale data when a
// recompute fails.
type queryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

func newQueryCache(ttl time.Duration) *queryCache {
	return &queryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// get returns the cached entry and whether it is still fresh.
func (c *queryCache) get(key string, now time.Time) (cacheEntry, bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return cacheEntry{}, false, false
	}
	fresh := now.Sub(entry.generatedAt) < c.ttl
	return entry, fresh, true
}

func (c *queryCache) set(key string, payload interface{}, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{payload: payload, generatedAt: now}
}
