// Package cache provides the optional short-TTL response cache. It is a
// best-effort rate-limit mitigation only; a miss must always be answerable by
// recomputing, so nothing here is a correctness dependency.
package cache

import (
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
)

type entry struct {
	value   *geojson.FeatureCollection
	expires time.Time
	added   time.Time
}

// Cache is a thread-safe TTL cache for completed FeatureCollections, bounded
// by a hard entry capacity. Expired entries are evicted lazily at read time;
// when the capacity is exceeded the oldest entry goes first.
type Cache struct {
	mu         sync.Mutex
	items      map[string]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// New creates a cache. A non-positive maxEntries disables the capacity bound.
func New(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		items:      make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached collection for key, evicting it if expired.
func (c *Cache) Get(key string) (*geojson.FeatureCollection, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if c.now().After(it.expires) {
		delete(c.items, key)
		return nil, false
	}
	return it.value, true
}

// Set stores a collection under key, evicting the oldest entry when the
// capacity bound is exceeded.
func (c *Cache) Set(key string, value *geojson.FeatureCollection) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.items[key] = entry{value: value, expires: now.Add(c.ttl), added: now}

	if c.maxEntries > 0 && len(c.items) > c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, it := range c.items {
			if oldestKey == "" || it.added.Before(oldest) {
				oldestKey = k
				oldest = it.added
			}
		}
		delete(c.items, oldestKey)
	}
}

// Len reports the current number of entries, counting any not yet evicted
// expired ones.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
