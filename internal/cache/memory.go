package cache

import (
	"encoding/json"
	"sync"
	"time"
)

// Memory is a bounded in-process cache with LRU eviction. Expired entries
// are purged lazily on read.
type Memory struct {
	mu          sync.Mutex
	maxSize     int
	entries     map[string]*Entry
	accessOrder []string // oldest first
	now         func() time.Time
}

// NewMemory creates a memory cache holding at most maxSize entries.
func NewMemory(maxSize int) *Memory {
	return &Memory{
		maxSize: maxSize,
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// WithClock overrides the cache's clock. Used by tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Get returns the payload for key, or ok=false on miss. A hit on an expired
// entry counts as a miss and removes the entry.
func (m *Memory) Get(key string) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[key]
	if !exists {
		return nil, false
	}

	now := m.now()
	if entry.Expired(now) {
		delete(m.entries, key)
		m.removeFromOrder(key)
		return nil, false
	}

	entry.Touch(now)
	// Move to most-recently-used position.
	m.removeFromOrder(key)
	m.accessOrder = append(m.accessOrder, key)

	return entry.Value, true
}

// Set stores the payload under key, evicting the least recently used entry
// when at capacity.
func (m *Memory) Set(key string, value json.RawMessage, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxSize {
		m.evictLRU()
	}

	m.entries[key] = NewEntry(value, ttl, m.now())

	m.removeFromOrder(key)
	m.accessOrder = append(m.accessOrder, key)
}

// evictLRU drops the least recently accessed entry. Caller holds the lock.
func (m *Memory) evictLRU() {
	if len(m.accessOrder) == 0 {
		return
	}

	lru := m.accessOrder[0]
	m.accessOrder = m.accessOrder[1:]
	delete(m.entries, lru)
}

// Delete removes key. Returns whether it existed.
func (m *Memory) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.entries[key]
	if exists {
		delete(m.entries, key)
		m.removeFromOrder(key)
	}
	return exists
}

// Keys returns a snapshot of all stored keys.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys
}

// Clear removes all entries.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*Entry)
	m.accessOrder = nil
}

// Len returns the number of stored entries, expired included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) removeFromOrder(key string) {
	for i, k := range m.accessOrder {
		if k == key {
			m.accessOrder = append(m.accessOrder[:i], m.accessOrder[i+1:]...)
			return
		}
	}
}

// MemoryStats describes the memory tier's occupancy.
type MemoryStats struct {
	TotalEntries   int     `json:"total_entries"`
	ExpiredEntries int     `json:"expired_entries"`
	ActiveEntries  int     `json:"active_entries"`
	MaxSize        int     `json:"max_size"`
	Utilization    float64 `json:"utilization"`
}

// Stats returns occupancy statistics.
func (m *Memory) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	expired := 0
	for _, entry := range m.entries {
		if entry.Expired(now) {
			expired++
		}
	}

	stats := MemoryStats{
		TotalEntries:   len(m.entries),
		ExpiredEntries: expired,
		ActiveEntries:  len(m.entries) - expired,
		MaxSize:        m.maxSize,
	}
	if m.maxSize > 0 {
		stats.Utilization = float64(len(m.entries)) / float64(m.maxSize)
	}

	return stats
}
