package cache

import "sync"

// memCache is a bounded in-memory cache for narinfo bodies.
// TODO: Use a proper LRU implementation like hashicorp/golang-lru
type memCache struct {
	maxSize int
	items   map[string][]byte
	mu      sync.RWMutex
}

func newMemCache(maxSize int) *memCache {
	return &memCache{
		maxSize: maxSize,
		items:   make(map[string][]byte),
	}
}

func (c *memCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.items[key]
	return val, ok
}

func (c *memCache) Add(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple eviction: if full, remove one arbitrary item.
	if len(c.items) >= c.maxSize {
		for k := range c.items {
			delete(c.items, k)
			break
		}
	}

	c.items[key] = value
}
