package cache

import (
	"sync"

	"github.com/google/uuid"
)

// LookupCache memoizes identity lookups for the duration of a run.
// Only hits are cached; a miss is always asked again.
type LookupCache struct {
	mu      sync.RWMutex
	entries map[string]uuid.UUID
	hits    int
	misses  int
}

// NewLookupCache creates an empty cache
func NewLookupCache() *LookupCache {
	return &LookupCache{entries: make(map[string]uuid.UUID)}
}

// Get returns the cached local id for key
func (c *LookupCache) Get(key string) (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return id, ok
}

// Set records a resolved local id
func (c *LookupCache) Set(key string, id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = id
}

// Forget drops every entry pointing at id
func (c *LookupCache) Forget(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range c.entries {
		if v == id {
			delete(c.entries, k)
		}
	}
}

// Reset empties the cache
func (c *LookupCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]uuid.UUID)
}

// Len returns the number of cached entries
func (c *LookupCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts since creation
func (c *LookupCache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
