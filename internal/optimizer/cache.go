package optimizer

import (
	"sync"
	"time"
)

// cacheEntry pairs a cached value with its absolute expiry.
type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// ttlCache is a key->value cache with per-entry TTL and no limit on its
// number of entries. Get returns nil and removes the entry once it has
// expired.
type ttlCache struct {
	mu    sync.Mutex
	data  map[string]cacheEntry
	clock func() time.Time
}

func newTTLCache() *ttlCache {
	return &ttlCache{data: make(map[string]cacheEntry), clock: time.Now}
}

// Set stores value under key with the given TTL.
func (c *ttlCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{value: value, expiresAt: c.clock().Add(ttl)}
}

// Get returns the cached value, or (nil, false) if absent or expired.
// An expired entry is removed as a side effect.
func (c *ttlCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if c.clock().After(entry.expiresAt) {
		delete(c.data, key)
		return nil, false
	}
	return entry.value, true
}

// Delete removes key unconditionally.
func (c *ttlCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Len returns the number of entries, including any not yet swept for
// expiry.
func (c *ttlCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
