package cache

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUStore is a size-bounded store that evicts the least recently used
// entry when full. An evicted key is simply recomputed on its next lookup.
type LRUStore[V any] struct {
	cache   *lru.Cache[string, V]
	evicted atomic.Uint64
}

// NewLRUStore creates a store holding at most size entries
func NewLRUStore[V any](size int) (*LRUStore[V], error) {
	s := &LRUStore[V]{}
	c, err := lru.NewWithEvict[string, V](size, func(string, V) {
		s.evicted.Add(1)
	})
	if err != nil {
		return nil, err
	}
	s.cache = c
	return s, nil
}

// Get returns the stored value for key and marks it recently used
func (s *LRUStore[V]) Get(_ context.Context, key string) (V, bool, error) {
	v, ok := s.cache.Get(key)
	return v, ok, nil
}

// Set stores value under key
func (s *LRUStore[V]) Set(_ context.Context, key string, value V) error {
	s.cache.Add(key, value)
	return nil
}

// Len returns the number of resident entries
func (s *LRUStore[V]) Len() int {
	return s.cache.Len()
}

// Evicted returns how many entries were pushed out so far
func (s *LRUStore[V]) Evicted() uint64 {
	return s.evicted.Load()
}
