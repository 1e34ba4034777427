package cache

import (
	"context"
	"time"
)

// Cache is the byte-value cache contract shared by the in-memory and
// Redis backends. Get returns found=false on a miss without error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
