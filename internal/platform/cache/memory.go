package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is an in-process expirable LRU
type Memory[T any] struct {
	lru *expirable.LRU[string, T]
}

var _ Cache[int] = (*Memory[int])(nil)

// NewMemory returns a cache holding at most size entries for ttl each
// size <= 0 means unbounded; ttl <= 0 means entries never expire
func NewMemory[T any](size int, ttl time.Duration) *Memory[T] {
	if size < 0 {
		size = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Memory[T]{lru: expirable.NewLRU[string, T](size, nil, ttl)}
}

// Get returns the cached value for key
func (m *Memory[T]) Get(_ context.Context, key string) (T, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

// Set stores v under key
func (m *Memory[T]) Set(_ context.Context, key string, v T) error {
	m.lru.Add(key, v)
	return nil
}

// Invalidate drops key
func (m *Memory[T]) Invalidate(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}
