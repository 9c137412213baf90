package cache

import (
	"encoding/json"
	"time"
)

// Entry is a cached payload with expiry and access metadata. The payload is
// opaque to the cache; callers serialize and deserialize it.
type Entry struct {
	Value        json.RawMessage `json:"value"`
	CreatedAt    time.Time       `json:"created_at"`
	TTL          time.Duration   `json:"ttl"`
	AccessCount  int             `json:"access_count"`
	LastAccessed time.Time       `json:"last_accessed,omitzero"`
}

// NewEntry creates an entry stamped at now.
func NewEntry(value json.RawMessage, ttl time.Duration, now time.Time) *Entry {
	return &Entry{
		Value:     value,
		CreatedAt: now,
		TTL:       ttl,
	}
}

// Expired reports whether the entry's TTL has elapsed at now.
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// Touch updates access statistics for a successful read.
func (e *Entry) Touch(now time.Time) {
	e.AccessCount++
	e.LastAccessed = now
}
