package cache

import (
	"sync"
	"time"
)

// MemoryCache is the default unbounded cache engine: a mutex-guarded map
// with per-entry expiry deadlines.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryItem

	hits      uint64
	misses    uint64
	expired   uint64
	sizeBytes int64

	// now is swappable in tests
	now func() time.Time
}

// memoryItem wraps the data with its expiration deadline.
type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

// NewMemory creates a new in-memory cache.
func NewMemory() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryItem),
		now:     time.Now,
	}
}

// isExpired applies the expiry rule: an entry is expired once now has
// reached its deadline, so a TTL <= 0 write is expired from the start.
func (c *MemoryCache) isExpired(item memoryItem, now time.Time) bool {
	return !now.Before(item.expiresAt)
}

// Get retrieves a fresh value from the cache by key.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.isExpired(item, c.now()) {
		c.removeLocked(key, item)
		c.expired++
		c.misses++
		return nil, false
	}
	c.hits++
	return item.data, true
}

// GetStale retrieves a value whether fresh or expired, without evicting
// and without touching the counters.
func (c *MemoryCache) GetStale(key string) ([]byte, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.entries[key]
	if !ok {
		return nil, false, false
	}
	return item.data, c.isExpired(item, c.now()), true
}

// Set stores a value with the given TTL. Overwrites replace both the value
// and the deadline; counters are untouched.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.sizeBytes -= int64(len(old.data))
	}
	c.entries[key] = memoryItem{
		data:      value,
		expiresAt: c.now().Add(ttl),
	}
	c.sizeBytes += int64(len(value))
}

// Has reports whether a fresh entry exists, removing it if expired.
// Unlike Get it does not count a hit or a miss.
func (c *MemoryCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.isExpired(item, c.now()) {
		c.removeLocked(key, item)
		c.expired++
		return false
	}
	return true
}

// Delete removes a value from the cache.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, ok := c.entries[key]; ok {
		c.removeLocked(key, item)
	}
}

// Clear removes all values and resets every counter.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]memoryItem)
	c.hits = 0
	c.misses = 0
	c.expired = 0
	c.sizeBytes = 0
}

// Size returns the current number of stored entries, including entries that
// have expired but not yet been noticed by a read.
func (c *MemoryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Expired:   c.expired,
		SizeBytes: c.sizeBytes,
		Items:     int64(len(c.entries)),
	}
}

// SweepExpired removes every expired entry and returns how many were
// removed. Sweeps do not touch the lazy-expiry counters.
func (c *MemoryCache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, item := range c.entries {
		if c.isExpired(item, now) {
			c.removeLocked(key, item)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) removeLocked(key string, item memoryItem) {
	c.sizeBytes -= int64(len(item.data))
	delete(c.entries, key)
}
