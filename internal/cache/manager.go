package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"macropulse/internal/timeseries"
	"macropulse/pkg/config"
	"macropulse/pkg/logger"
)

// Manager composes the memory and disk tiers behind a single read-through,
// write-through surface. Caching is advisory: correctness never depends on
// a hit, and concurrent writers to the same key race under last-write-wins.
type Manager struct {
	memory     *Memory
	disk       *Disk
	enabled    bool
	defaultTTL time.Duration
	logger     *logger.Logger
	now        func() time.Time

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewManager creates a cache manager from config. With CACHE_ENABLED=false
// every read is a miss and writes are dropped, so callers always recompute.
func NewManager(cfg *config.Config, log *logger.Logger) (*Manager, error) {
	disk, err := NewDisk(cfg.Cache.DiskDir, log)
	if err != nil {
		return nil, err
	}

	return &Manager{
		memory:     NewMemory(cfg.Cache.MaxMemorySize),
		disk:       disk,
		enabled:    cfg.Cache.Enabled,
		defaultTTL: cfg.Cache.DefaultTTL,
		logger:     log,
		now:        time.Now,
	}, nil
}

// WithClock overrides the clock on the manager and both tiers. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	m.memory.WithClock(now)
	m.disk.WithClock(now)
	return m
}

// Key builds a deterministic cache key from an operation name, positional
// arguments in order, and keyword arguments sorted by name. Series-shaped
// arguments are summarized by length and endpoints rather than content, so
// key generation stays cheap; distinct same-shaped inputs may collide, which
// is acceptable for derived, recomputable artifacts.
func Key(operation string, args []interface{}, kwargs map[string]interface{}) string {
	parts := []string{operation}

	for _, arg := range args {
		parts = append(parts, summarize(arg))
	}

	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%s", name, summarize(kwargs[name])))
	}

	return strings.Join(parts, "|")
}

func summarize(v interface{}) string {
	switch val := v.(type) {
	case timeseries.Series:
		if len(val) == 0 {
			return "series:0"
		}
		return fmt.Sprintf("series:%d:%s:%s",
			len(val),
			val[0].Date.Format("2006-01-02"),
			val[len(val)-1].Date.Format("2006-01-02"))
	case []float64:
		return fmt.Sprintf("f64:%d", len(val))
	case time.Time:
		return val.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Get returns the raw payload for key: memory first, then disk. A disk hit
// is promoted into memory at the default TTL.
func (m *Manager) Get(key string) (json.RawMessage, bool) {
	if !m.enabled {
		return nil, false
	}

	if value, ok := m.memory.Get(key); ok {
		m.hits.Add(1)
		return value, true
	}

	if value, ok := m.disk.Get(key); ok {
		m.memory.Set(key, value, m.defaultTTL)
		m.hits.Add(1)
		return value, true
	}

	m.misses.Add(1)
	return nil, false
}

// GetAs reads the payload for key into dest. A payload that no longer
// unmarshals is treated as a miss.
func (m *Manager) GetAs(key string, dest interface{}) bool {
	value, ok := m.Get(key)
	if !ok {
		return false
	}

	if err := json.Unmarshal(value, dest); err != nil {
		m.logger.WithFields(map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		}).Warn("Cache payload unmarshal failed, treating as miss")
		m.Invalidate(key)
		return false
	}

	return true
}

// Set writes the value to both tiers.
func (m *Manager) Set(key string, value interface{}, ttl time.Duration) error {
	if !m.enabled {
		return nil
	}

	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	m.memory.Set(key, data, ttl)
	m.disk.Set(key, NewEntry(data, ttl, m.now()))

	return nil
}

// GetOrCompute reads key into dest, computing and storing the value on a
// miss. The computation result is written through both tiers before being
// returned. Returns whether the value came from cache.
func (m *Manager) GetOrCompute(ctx context.Context, key string, ttl time.Duration, dest interface{}, compute func(context.Context) (interface{}, error)) (bool, error) {
	if m.GetAs(key, dest) {
		return true, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return false, err
	}

	if err := m.Set(key, value, ttl); err != nil {
		// A failed cache write never fails the computation.
		m.logger.WithError(err).Warn("Cache write failed")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("marshal computed value: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("unmarshal computed value: %w", err)
	}

	return false, nil
}

// Invalidate removes key from both tiers. Returns whether a disk entry
// existed.
func (m *Manager) Invalidate(key string) bool {
	m.memory.Delete(key)
	return m.disk.Delete(key)
}

// InvalidatePattern removes every memory-tier key containing the substring
// (and its disk counterpart) and returns the count removed. Disk entries
// whose keys are no longer resident in memory are deliberately left alone:
// they self-expire, and a full disk scan per invalidation is not worth the
// stale-read window.
func (m *Manager) InvalidatePattern(substring string) int {
	count := 0
	for _, key := range m.memory.Keys() {
		if strings.Contains(key, substring) {
			m.memory.Delete(key)
			m.disk.Delete(key)
			count++
		}
	}
	return count
}

// ClearAll empties both tiers.
func (m *Manager) ClearAll() {
	m.memory.Clear()
	m.disk.Clear()
}

// Stats describes both tiers plus hit-rate counters.
type Stats struct {
	Memory    MemoryStats `json:"memory_cache"`
	DiskFiles int         `json:"disk_cache_files"`
	DiskDir   string      `json:"cache_dir"`
	Hits      uint64      `json:"hits"`
	Misses    uint64      `json:"misses"`
	HitRate   float64     `json:"hit_rate"`
}

// GetStats returns comprehensive cache statistics.
func (m *Manager) GetStats() Stats {
	hits := m.hits.Load()
	misses := m.misses.Load()

	stats := Stats{
		Memory:    m.memory.Stats(),
		DiskFiles: m.disk.Len(),
		DiskDir:   m.disk.Dir(),
		Hits:      hits,
		Misses:    misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}

	return stats
}

// CleanupResult reports what a cleanup pass reclaimed.
type CleanupResult struct {
	ExpiredDiskEntriesRemoved int         `json:"expired_disk_entries_removed"`
	MemoryStats               MemoryStats `json:"memory_cache_stats"`
}

// Cleanup sweeps expired entries from the disk tier.
func (m *Manager) Cleanup() CleanupResult {
	return CleanupResult{
		ExpiredDiskEntriesRemoved: m.disk.CleanupExpired(),
		MemoryStats:               m.memory.Stats(),
	}
}
