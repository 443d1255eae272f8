package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiterAllow(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping: %v", err)
	}

	config := Config{Name: "test-" + time.Now().Format("150405.000000"), RequestsPerWindow: 3, WindowSize: time.Minute}
	limiter := NewRedisLimiter(client, config)
	defer client.Del(ctx, limiter.prefix+"k1", limiter.prefix+"k2")

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 3-i-1, result.Remaining)
	}

	result, err := limiter.Allow(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Positive(t, result.RetryAfter)

	result, err = limiter.Allow(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestNewRedisClientRejectsBadUrl(t *testing.T) {
	_, err := NewRedisClient("not a url", "")
	assert.Error(t, err)
}
