package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionRSSKey(t *testing.T) {
	assert.Equal(t, "rss:subscription:42", SubscriptionRSSKey(42))
	assert.NotEqual(t, SubscriptionRSSKey(1), SubscriptionRSSKey(2))
}

func TestNewCacheUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Port 1 is never a Redis server.
	_, err := NewCache(ctx, "127.0.0.1:1", "")
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to connect to Redis")
}
