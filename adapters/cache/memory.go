package cache

import (
	"context"
	"sync"
)

// MemoryStore is an unbounded in-process table. Entries live until the
// process exits; every distinct key stays resident, so memory grows with the
// number of distinct inputs seen.
type MemoryStore[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

// NewMemoryStore creates an empty store
func NewMemoryStore[V any]() *MemoryStore[V] {
	return &MemoryStore[V]{entries: make(map[string]V)}
}

// Get returns the stored value for key
func (s *MemoryStore[V]) Get(_ context.Context, key string) (V, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.entries[key]
	return v, ok, nil
}

// Set stores value under key, replacing any previous value
func (s *MemoryStore[V]) Set(_ context.Context, key string, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = value
	return nil
}

// Len returns the number of entries
func (s *MemoryStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
