package cache

import (
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

// LRUCache is the size-bounded cache engine, built on ristretto. Ristretto
// owns the values and the cost-based admission/eviction policy; an index of
// key -> deadline rides alongside it so the engine can report an exact
// Size, enumerate entries for sweeps, and heal itself when ristretto drops
// an entry behind its back.
type LRUCache struct {
	cache *ristretto.Cache

	mu    sync.Mutex
	index map[string]time.Time // key -> expiry deadline

	hits      uint64
	misses    uint64
	expired   uint64
	evictions uint64
	sizeBytes int64

	// now is swappable in tests
	now func() time.Time
}

// cacheItem wraps the data with its key and expiration deadline. The key is
// carried so eviction callbacks can find the index entry again.
type cacheItem struct {
	key       string
	data      []byte
	expiresAt time.Time
}

// NewLRU creates a new bounded cache.
// maxSizeMB is the maximum size of the cache in megabytes.
// maxEntries is the maximum number of entries in the cache.
func NewLRU(maxSizeMB int64, maxEntries int64) (*LRUCache, error) {
	// NumCounters should be ~10x the number of entries for optimal
	// admission decisions.
	numCounters := maxEntries * 10
	if numCounters < 1000 {
		numCounters = 1000
	}

	c := &LRUCache{
		index: make(map[string]time.Time),
		now:   time.Now,
	}

	config := &ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxSizeMB * 1024 * 1024, // Convert MB to bytes
		BufferItems: 64,                      // Number of keys per Get buffer
		OnEvict:     c.onEvict,
	}

	cache, err := ristretto.NewCache(config)
	if err != nil {
		return nil, err
	}
	c.cache = cache
	return c, nil
}

// onEvict keeps the index in sync when ristretto's policy drops an entry.
// It runs on ristretto's internal goroutine; mutating calls into ristretto
// are therefore never made while holding mu (they could block behind that
// goroutine).
func (c *LRUCache) onEvict(item *ristretto.Item) {
	entry, ok := item.Value.(*cacheItem)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, live := c.index[entry.key]; live {
		delete(c.index, entry.key)
		c.evictions++
		c.sizeBytes -= int64(len(entry.data))
	}
}

// Get retrieves a fresh value from the cache by key.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	if _, ok := c.index[key]; !ok {
		c.misses++
		c.mu.Unlock()
		return nil, false
	}
	item, found := c.lookup(key)
	if !found {
		// Evicted or rejected behind our back; heal the index.
		delete(c.index, key)
		c.misses++
		c.mu.Unlock()
		return nil, false
	}
	if !c.now().Before(item.expiresAt) {
		c.forgetLocked(key, item)
		c.expired++
		c.misses++
		c.mu.Unlock()
		c.cache.Del(key)
		return nil, false
	}
	c.hits++
	c.mu.Unlock()
	return item.data, true
}

// GetStale retrieves a value whether fresh or expired, without evicting and
// without touching the counters.
func (c *LRUCache) GetStale(key string) ([]byte, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[key]; !ok {
		return nil, false, false
	}
	item, found := c.lookup(key)
	if !found {
		delete(c.index, key)
		return nil, false, false
	}
	return item.data, !c.now().Before(item.expiresAt), true
}

// Set stores a value with the given TTL. Ristretto applies sets through a
// buffer, so the write is flushed before returning. Admission may still
// reject the entry; reads heal the index when that happens.
func (c *LRUCache) Set(key string, value []byte, ttl time.Duration) {
	item := &cacheItem{
		key:       key,
		data:      value,
		expiresAt: c.now().Add(ttl),
	}

	c.mu.Lock()
	if old, found := c.lookup(key); found {
		c.sizeBytes -= int64(len(old.data))
	}
	c.index[key] = item.expiresAt
	c.sizeBytes += int64(len(value))
	c.mu.Unlock()

	// Cost is the size of the data in bytes.
	_ = c.cache.Set(key, item, int64(len(value)))
	c.cache.Wait()
}

// Has reports whether a fresh entry exists, removing it if expired.
// Unlike Get it does not count a hit or a miss.
func (c *LRUCache) Has(key string) bool {
	c.mu.Lock()
	if _, ok := c.index[key]; !ok {
		c.mu.Unlock()
		return false
	}
	item, found := c.lookup(key)
	if !found {
		delete(c.index, key)
		c.mu.Unlock()
		return false
	}
	if !c.now().Before(item.expiresAt) {
		c.forgetLocked(key, item)
		c.expired++
		c.mu.Unlock()
		c.cache.Del(key)
		return false
	}
	c.mu.Unlock()
	return true
}

// Delete removes a value from the cache.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	if _, ok := c.index[key]; !ok {
		c.mu.Unlock()
		return
	}
	item, found := c.lookup(key)
	if found {
		c.forgetLocked(key, item)
	} else {
		delete(c.index, key)
	}
	c.mu.Unlock()
	c.cache.Del(key)
}

// Clear removes all values and resets every counter. The index is emptied
// under the lock first so concurrent eviction callbacks find nothing live.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	c.index = make(map[string]time.Time)
	c.hits = 0
	c.misses = 0
	c.expired = 0
	c.evictions = 0
	c.sizeBytes = 0
	c.mu.Unlock()

	c.cache.Clear()
}

// Size returns the current number of tracked entries.
func (c *LRUCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Stats returns a snapshot of the cache counters.
func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Expired:   c.expired,
		Evictions: c.evictions,
		SizeBytes: c.sizeBytes,
		Items:     int64(len(c.index)),
	}
}

// SweepExpired removes every expired entry and returns how many were
// removed.
func (c *LRUCache) SweepExpired() int {
	c.mu.Lock()
	now := c.now()
	var dropped []string
	for key, deadline := range c.index {
		if !now.Before(deadline) {
			if item, found := c.lookup(key); found {
				c.sizeBytes -= int64(len(item.data))
			}
			delete(c.index, key)
			dropped = append(dropped, key)
		}
	}
	c.mu.Unlock()

	for _, key := range dropped {
		c.cache.Del(key)
	}
	return len(dropped)
}

// Close closes the cache and releases resources.
func (c *LRUCache) Close() {
	c.cache.Close()
}

// lookup fetches the stored item from ristretto without any expiry logic.
func (c *LRUCache) lookup(key string) (*cacheItem, bool) {
	val, found := c.cache.Get(key)
	if !found {
		return nil, false
	}
	item, ok := val.(*cacheItem)
	if !ok {
		return nil, false
	}
	return item, true
}

// forgetLocked removes key from the index and undoes its size accounting.
// Callers hold mu and are responsible for the ristretto delete.
func (c *LRUCache) forgetLocked(key string, item *cacheItem) {
	c.sizeBytes -= int64(len(item.data))
	delete(c.index, key)
}
