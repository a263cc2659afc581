package serve

import (
	"fmt"
	"sync"
	"time"
)

// tileCache is a concurrent-safe LRU cache with TTL expiration for proxied
// basemap tiles.
type tileCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	order      []string // front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
}

type cacheEntry struct {
	data      []byte
	createdAt time.Time
}

func newTileCache(maxEntries int, ttl time.Duration) *tileCache {
	return &tileCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

func cacheKey(z, x, y int) string {
	return fmt.Sprintf("%d/%d/%d", z, x, y)
}

// get returns nil on miss or expiration.
func (c *tileCache) get(z, x, y int) []byte {
	key := cacheKey(z, x, y)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	return entry.data
}

// put stores a tile, evicting the oldest entry when at capacity.
func (c *tileCache) put(z, x, y int, data []byte) {
	key := cacheKey(z, x, y)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.removeFromOrder(key)
	} else if len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &cacheEntry{data: data, createdAt: time.Now()}
	c.order = append(c.order, key)
}

func (c *tileCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
