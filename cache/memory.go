// In-memory cache backend.
//
// Information Hiding:
// - Map storage structure hidden behind Cache
// - Thread-safe access via RWMutex
// - Optional TTL checked lazily on read

package cache

import (
	"context"
	"sync"
	"time"
)

// Memory implements Cache with a map. With a zero TTL entries live for the
// lifetime of the process and the map is never pruned.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates an in-memory cache. ttl <= 0 disables expiry.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the value for key unless it is absent or expired.
func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	if m.ttl > 0 && m.now().Sub(entry.CreatedAt) >= m.ttl {
		m.mu.Lock()
		if current, still := m.entries[key]; still && current.CreatedAt.Equal(entry.CreatedAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return "", false
	}
	return entry.Value, true
}

// Set stores value under key. At most one entry exists per key.
func (m *Memory) Set(_ context.Context, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = Entry{Key: key, Value: value, CreatedAt: m.now()}
}

// Entry returns the stored entry including its creation time.
func (m *Memory) Entry(key string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	return e, ok
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// Verify Memory implements Cache
var _ Cache = (*Memory)(nil)
