// Package cache provides a TTL cache with in-memory and Redis backends.
//
// Entries are invalidated purely by age. An expired entry is never returned;
// callers re-fetch on miss. There is no write-triggered invalidation.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is the TTL cache port.
type Cache interface {
	// Get returns the raw value for key, or ok=false on miss or expiry.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes a key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	value     []byte
	fetchedAt time.Time
	ttl       time.Duration
}

func (e memoryEntry) expired(now time.Time) bool {
	return now.Sub(e.fetchedAt) >= e.ttl
}

// Memory is a mutex-guarded in-process TTL cache. It is the default backend.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// now is swappable in tests.
	now func() time.Time
}

var _ Cache = (*Memory)(nil)

// NewMemory creates an in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// NewMemoryWithClock creates an in-memory cache with an injected clock.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if entry.expired(m.now()) {
		m.mu.Lock()
		// Re-check under the write lock; a fresher entry may have landed.
		if cur, ok := m.entries[key]; ok && cur.expired(m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: value, fetchedAt: m.now(), ttl: ttl}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of live entries, counting expired ones out.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	now := m.now()
	for _, e := range m.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}
