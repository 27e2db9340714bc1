package plan

import (
	"sync"
	"time"
)

// Cache is the Planner's same-incident-replay suppressor. The default
// implementation is process-local; a shared implementation (e.g. backed
// by a NATS-KV bucket) can satisfy the same interface for multi-replica
// deployments without the Planner code changing (§9 Global mutable state).
type Cache interface {
	// Get returns a previously cached plan for key if it's still within
	// TTL, and whether it was found.
	Get(key string) (Plan, bool)
	// Put stores plan under key, starting a fresh TTL window.
	Put(key string, p Plan)
}

// CacheTTL is the Planner's plan-cache time-to-live (§4.1).
const CacheTTL = 300 * time.Second

type cacheEntry struct {
	plan      Plan
	expiresAt time.Time
}

// InMemoryCache is the default process-local Cache implementation.
type InMemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryCache creates a cache with the standard 300s TTL.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     CacheTTL,
		now:     time.Now,
	}
}

// Get implements Cache.
func (c *InMemoryCache) Get(key string) (Plan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Plan{}, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return Plan{}, false
	}
	return entry.plan, true
}

// Put implements Cache.
func (c *InMemoryCache) Put(key string, p Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{plan: p, expiresAt: c.now().Add(c.ttl)}
}

// CacheKey builds the Planner's cache key: (incident_id, title, affected_service).
func CacheKey(incidentID, title, affectedService string) string {
	return incidentID + "\x00" + title + "\x00" + affectedService
}
