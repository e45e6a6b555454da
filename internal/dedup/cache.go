package dedup

import (
	"sync"
	"time"
)

// hashCache remembers recently seen identity hashes so repeat entries skip
// the store round-trip. Entries expire so hashes removed by the retention
// sweeper do not stay blocked forever.
type hashCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]time.Time // hash -> expiry
}

func newHashCache(ttl time.Duration) *hashCache {
	c := &hashCache{
		ttl:   ttl,
		items: make(map[string]time.Time),
	}

	go c.cleanupLoop()

	return c
}

func (c *hashCache) Add(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[hash] = time.Now().Add(c.ttl)
}

func (c *hashCache) Has(hash string) bool {
	c.mu.RLock()
	expiry, ok := c.items[hash]
	c.mu.RUnlock()

	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		c.mu.Lock()
		delete(c.items, hash)
		c.mu.Unlock()
		return false
	}
	return true
}

func (c *hashCache) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		c.cleanup()
	}
}

func (c *hashCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for hash, expiry := range c.items {
		if now.After(expiry) {
			delete(c.items, hash)
		}
	}
}
