package cache

import "time"

// MockCache is a simple in-memory cache for testing that implements the
// Cache interface. Entries never expire on their own; tests mark staleness
// explicitly with SetStaleEntry.
type MockCache struct {
	data  map[string][]byte
	stale map[string]bool
}

// NewMockCache creates a new mock cache for testing.
func NewMockCache() *MockCache {
	return &MockCache{
		data:  make(map[string][]byte),
		stale: make(map[string]bool),
	}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	if m.stale[key] {
		return nil, false
	}
	val, found := m.data[key]
	return val, found
}

func (m *MockCache) GetStale(key string) ([]byte, bool, bool) {
	val, found := m.data[key]
	if !found {
		return nil, false, false
	}
	return val, m.stale[key], true
}

func (m *MockCache) Set(key string, value []byte, ttl time.Duration) {
	m.data[key] = value
	delete(m.stale, key)
}

// SetStaleEntry stores an entry that only GetStale will return.
func (m *MockCache) SetStaleEntry(key string, value []byte) {
	m.data[key] = value
	m.stale[key] = true
}

func (m *MockCache) Has(key string) bool {
	_, found := m.data[key]
	return found && !m.stale[key]
}

func (m *MockCache) Delete(key string) {
	delete(m.data, key)
	delete(m.stale, key)
}

func (m *MockCache) Clear() {
	m.data = make(map[string][]byte)
	m.stale = make(map[string]bool)
}

func (m *MockCache) Size() int {
	return len(m.data)
}

func (m *MockCache) Stats() Stats {
	return Stats{
		Items: int64(len(m.data)),
	}
}
