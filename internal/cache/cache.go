package cache

import (
	"context"
	"sync"
	"time"
)

// Store is the backing store for a freshness cache. Get returns the value
// if present and not expired; Set overwrites (never merges) with a TTL.
type Store[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
}

// Memory implements Store with an in-process map. Entries are superseded
// in place on refresh; expired entries are dropped on access. Safe for
// concurrent use.
type Memory[T any] struct {
	mu   sync.Mutex
	data map[string]memoryEntry[T]
}

type memoryEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{data: make(map[string]memoryEntry[T])}
}

// Get returns (value, true, nil) on a fresh hit and (zero, false, nil) on a
// miss or expiry.
func (m *Memory[T]) Get(ctx context.Context, key string) (T, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.data[key]
	if !ok {
		var zero T
		return zero, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(m.data, key)
		var zero T
		return zero, false, nil
	}
	return entry.value, true, nil
}

// Set stores value under key for ttl.
func (m *Memory[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = memoryEntry[T]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
