package cache

import (
	"context"
	"sync"
	"time"
)

// TTLCache is an in-memory Cache with time-based expiration. Concurrent
// writers for the same key race benignly: entries for the same key are
// interchangeable, so last-writer-wins is acceptable.
type TTLCache struct {
	mu         sync.RWMutex
	entries    map[string]*cacheEntry
	maxEntries int

	stopCh   chan struct{}
	stopOnce sync.Once
}

type cacheEntry struct {
	value   []byte
	expires time.Time
}

// NewTTLCache creates a TTL cache holding at most maxEntries values.
// maxEntries <= 0 means unbounded.
func NewTTLCache(maxEntries int) *TTLCache {
	c := &TTLCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *TTLCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.expires) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *TTLCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = &cacheEntry{
		value:   value,
		expires: time.Now().Add(ttl),
	}
	return nil
}

// evictLocked drops expired entries, falling back to an arbitrary entry
// when nothing has expired yet.
func (c *TTLCache) evictLocked() {
	now := time.Now()
	removed := false
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
			removed = true
		}
	}
	if !removed {
		for key := range c.entries {
			delete(c.entries, key)
			break
		}
	}
}

func (c *TTLCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expires) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

// Close stops the background cleanup goroutine.
func (c *TTLCache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Len returns the number of entries currently stored, expired or not.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
