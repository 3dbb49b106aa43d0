package cache

import (
	"testing"
	"time"
)

// fixedClock returns a now func pinned to t plus a setter to advance it.
func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	current := start
	return func() time.Time { return current },
		func(d time.Duration) { current = current.Add(d) }
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := NewMemory()

	key := "test-key"
	value := []byte("test-value")
	cache.Set(key, value, time.Minute)

	retrieved, found := cache.Get(key)
	if !found {
		t.Error("Expected to find cached value")
	}
	if string(retrieved) != string(value) {
		t.Errorf("Expected %s, got %s", value, retrieved)
	}
}

func TestMemoryCache_GetNonExistent(t *testing.T) {
	cache := NewMemory()

	_, found := cache.Get("nonexistent")
	if found {
		t.Error("Expected not to find nonexistent key")
	}
	if stats := cache.Stats(); stats.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", stats.Misses)
	}
}

func TestMemoryCache_LazyExpiration(t *testing.T) {
	cache := NewMemory()
	now, advance := fixedClock(time.Now())
	cache.now = now

	cache.Set("expiring-key", []byte("expiring-value"), 100*time.Millisecond)

	// Fresh before the deadline.
	if _, found := cache.Get("expiring-key"); !found {
		t.Error("Expected to find value before expiry")
	}

	advance(150 * time.Millisecond)

	// Expired: reported as a miss and removed.
	if _, found := cache.Get("expiring-key"); found {
		t.Error("Expected value to be expired")
	}
	if size := cache.Size(); size != 0 {
		t.Errorf("Expected expired entry to be removed, size=%d", size)
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Expired != 1 {
		t.Errorf("Unexpected counters: %+v", stats)
	}
}

func TestMemoryCache_ExpiryAtExactDeadline(t *testing.T) {
	cache := NewMemory()
	now, advance := fixedClock(time.Now())
	cache.now = now

	cache.Set("key", []byte("value"), time.Second)
	advance(time.Second)

	// now == expiresAt counts as expired.
	if _, found := cache.Get("key"); found {
		t.Error("Expected entry to be expired exactly at its deadline")
	}
}

func TestMemoryCache_ZeroTTLIsImmediatelyExpired(t *testing.T) {
	cache := NewMemory()

	cache.Set("key", []byte("value"), 0)

	if _, found := cache.Get("key"); found {
		t.Error("Expected zero-TTL entry to never be served fresh")
	}

	// The stale path can still reach it, but Get above already dropped it.
	cache.Set("key", []byte("value"), 0)
	value, stale, ok := cache.GetStale("key")
	if !ok {
		t.Fatal("Expected GetStale to find the zero-TTL entry")
	}
	if !stale {
		t.Error("Expected zero-TTL entry to be flagged stale")
	}
	if string(value) != "value" {
		t.Errorf("Expected value, got %s", value)
	}

	cache.Set("neg", []byte("value"), -time.Second)
	if _, found := cache.Get("neg"); found {
		t.Error("Expected negative-TTL entry to never be served fresh")
	}
}

func TestMemoryCache_GetStaleHasNoSideEffects(t *testing.T) {
	cache := NewMemory()
	now, advance := fixedClock(time.Now())
	cache.now = now

	cache.Set("key", []byte("value"), time.Second)

	// Fresh entry: stale flag is false.
	if _, stale, ok := cache.GetStale("key"); !ok || stale {
		t.Errorf("Expected fresh entry, got stale=%v ok=%v", stale, ok)
	}

	advance(2 * time.Second)

	// Expired entry: still returned, flagged stale, not evicted.
	value, stale, ok := cache.GetStale("key")
	if !ok || !stale {
		t.Errorf("Expected stale entry, got stale=%v ok=%v", stale, ok)
	}
	if string(value) != "value" {
		t.Errorf("Expected value, got %s", value)
	}
	if cache.Size() != 1 {
		t.Error("GetStale must not evict")
	}

	// Missing key.
	if _, _, ok := cache.GetStale("missing"); ok {
		t.Error("Expected GetStale miss for missing key")
	}

	// None of the above touched the counters.
	stats := cache.Stats()
	if stats.Hits != 0 || stats.Misses != 0 || stats.Expired != 0 {
		t.Errorf("GetStale must not touch counters: %+v", stats)
	}
}

func TestMemoryCache_Has(t *testing.T) {
	cache := NewMemory()
	now, advance := fixedClock(time.Now())
	cache.now = now

	cache.Set("key", []byte("value"), time.Second)

	if !cache.Has("key") {
		t.Error("Expected Has to report fresh entry")
	}
	if cache.Has("missing") {
		t.Error("Expected Has to report missing entry")
	}

	advance(2 * time.Second)

	// Expired: removed, counted as expired, but not as a miss.
	if cache.Has("key") {
		t.Error("Expected Has to report expired entry as absent")
	}
	if cache.Size() != 0 {
		t.Error("Expected Has to remove the expired entry")
	}

	stats := cache.Stats()
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("Has must not count hits or misses: %+v", stats)
	}
	if stats.Expired != 1 {
		t.Errorf("Expected 1 expired, got %d", stats.Expired)
	}
}

func TestMemoryCache_OverwriteReplacesValueAndDeadline(t *testing.T) {
	cache := NewMemory()
	now, advance := fixedClock(time.Now())
	cache.now = now

	cache.Set("key", []byte("old"), time.Second)
	advance(500 * time.Millisecond)
	cache.Set("key", []byte("new"), time.Second)

	// Past the first deadline but within the second.
	advance(700 * time.Millisecond)

	value, found := cache.Get("key")
	if !found {
		t.Fatal("Expected overwritten entry to be fresh under its new deadline")
	}
	if string(value) != "new" {
		t.Errorf("Expected new value, got %s", value)
	}
	if size := cache.Size(); size != 1 {
		t.Errorf("Expected a single entry, got %d", size)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemory()

	cache.Set("delete-key", []byte("delete-value"), time.Minute)
	if _, found := cache.Get("delete-key"); !found {
		t.Error("Expected to find value before delete")
	}

	cache.Delete("delete-key")

	if _, found := cache.Get("delete-key"); found {
		t.Error("Expected value to be deleted")
	}
}

func TestMemoryCache_ClearResetsCounters(t *testing.T) {
	cache := NewMemory()

	cache.Set("key1", []byte("value1"), time.Minute)
	cache.Set("key2", []byte("value2"), time.Minute)
	cache.Get("key1")    // hit
	cache.Get("missing") // miss

	cache.Clear()

	if cache.Size() != 0 {
		t.Error("Expected cache to be empty after Clear")
	}
	stats := cache.Stats()
	if stats.Hits != 0 || stats.Misses != 0 || stats.Expired != 0 || stats.SizeBytes != 0 {
		t.Errorf("Expected counters reset after Clear: %+v", stats)
	}
}

func TestMemoryCache_SizeIncludesUndetectedExpired(t *testing.T) {
	cache := NewMemory()
	now, advance := fixedClock(time.Now())
	cache.now = now

	cache.Set("key1", []byte("value1"), time.Second)
	cache.Set("key2", []byte("value2"), time.Minute)
	advance(2 * time.Second)

	// key1 has expired but no read has noticed yet.
	if size := cache.Size(); size != 2 {
		t.Errorf("Expected size 2 before lazy detection, got %d", size)
	}

	cache.Get("key1")
	if size := cache.Size(); size != 1 {
		t.Errorf("Expected size 1 after lazy detection, got %d", size)
	}
}

func TestMemoryCache_SizeBytes(t *testing.T) {
	cache := NewMemory()

	cache.Set("a", []byte("12345"), time.Minute)
	cache.Set("b", []byte("123"), time.Minute)
	if stats := cache.Stats(); stats.SizeBytes != 8 {
		t.Errorf("Expected 8 bytes, got %d", stats.SizeBytes)
	}

	cache.Set("a", []byte("1"), time.Minute) // overwrite shrinks
	if stats := cache.Stats(); stats.SizeBytes != 4 {
		t.Errorf("Expected 4 bytes after overwrite, got %d", stats.SizeBytes)
	}

	cache.Delete("b")
	if stats := cache.Stats(); stats.SizeBytes != 1 {
		t.Errorf("Expected 1 byte after delete, got %d", stats.SizeBytes)
	}
}

func TestMemoryCache_SweepExpired(t *testing.T) {
	cache := NewMemory()
	now, advance := fixedClock(time.Now())
	cache.now = now

	cache.Set("gone1", []byte("value"), time.Second)
	cache.Set("gone2", []byte("value"), 2*time.Second)
	cache.Set("keep", []byte("value"), time.Minute)
	advance(5 * time.Second)

	removed := cache.SweepExpired()
	if removed != 2 {
		t.Errorf("Expected 2 swept entries, got %d", removed)
	}
	if size := cache.Size(); size != 1 {
		t.Errorf("Expected 1 surviving entry, got %d", size)
	}
	if !cache.Has("keep") {
		t.Error("Expected fresh entry to survive the sweep")
	}

	// Sweeps do not touch the lazy-expiry counters.
	if stats := cache.Stats(); stats.Expired != 0 {
		t.Errorf("Expected sweep to leave Expired at 0, got %d", stats.Expired)
	}
}
