package cache

import "time"

// Cache defines the interface for caching secret material with TTL.
//
// Expiry is lazy: an expired entry is noticed and removed by the read that
// finds it, not by a background thread. GetStale is the one read that will
// return an expired entry, so stale copies can be served while the upstream
// is suspended.
type Cache interface {
	// Get retrieves a fresh value from the cache by key.
	// Returns the value and true if found and not expired, otherwise nil and
	// false. An expired entry is removed and reported as a miss.
	Get(key string) ([]byte, bool)

	// GetStale retrieves a value whether fresh or expired. The stale flag
	// reports which. GetStale never evicts and never touches the counters.
	GetStale(key string) (value []byte, stale bool, ok bool)

	// Set stores a value in the cache with the given key and TTL.
	// A TTL <= 0 stores the entry already expired: it is only reachable
	// through GetStale.
	Set(key string, value []byte, ttl time.Duration)

	// Has reports whether a fresh entry exists for key. Like Get it removes
	// an expired entry, but it does not count a hit or a miss.
	Has(key string) bool

	// Delete removes a value from the cache.
	Delete(key string)

	// Clear removes all values from the cache and resets all counters.
	Clear()

	// Size returns the current number of stored entries, including entries
	// that have expired but not yet been noticed by a read.
	Size() int

	// Stats returns cache statistics.
	Stats() Stats
}

// Stats represents cache statistics. The counters are monotonic between
// Clear calls; Clear is the only reset.
type Stats struct {
	Hits      uint64 // Fresh cache hits
	Misses    uint64 // Misses, including reads that found an expired entry
	Expired   uint64 // Entries removed after expiring (lazy detection)
	Evictions uint64 // Capacity evictions (bounded engines only)
	SizeBytes int64  // Approximate stored value bytes
	Items     int64  // Current number of entries
}

// ExpirySweeper is implemented by engines that can enumerate and drop
// expired entries in bulk. The background sweeper uses it when available.
type ExpirySweeper interface {
	// SweepExpired removes every expired entry and returns how many were
	// removed. It does not touch the Stats counters; sweep activity is
	// reported through its own metrics.
	SweepExpired() int
}
