package cache

import "sync"

// Map is a concurrency-safe string-keyed map used for run-scoped
// memoization (token metadata, receipts, resolved token ids).
// Concurrent fetches of the same key may race; values for the same key
// are idempotent, so last-writer-wins is fine.
type Map[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

func NewMap[V any]() *Map[V] {
	return &Map[V]{m: make(map[string]V)}
}

func (c *Map[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *Map[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
}

func (c *Map[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
