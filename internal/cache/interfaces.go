package cache

import (
	"context"
	"time"
)

// CacheInterface stores rendered documents by key. Get reports a miss as
// found=false with a nil error.
type CacheInterface interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
