package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/config"
)

func newCacheTestClient(t *testing.T) *AvailabilityCache {
	t.Helper()
	client := NewClient(&config.RedisConfig{Host: "localhost", Port: "6379"})
	if err := Ping(context.Background(), client); err != nil {
		t.Skip("Redis not available")
	}
	t.Cleanup(func() { client.Close() })
	return NewAvailabilityCache(client)
}

func TestAvailabilityCache_SetAndGet(t *testing.T) {
	cache := newCacheTestClient(t)
	ctx := context.Background()

	counts := map[string]int{"fare-economy": 120, "fare-business": 8}
	require.NoError(t, cache.Set(ctx, "flight-cache-1", counts, 1*time.Minute))

	got, err := cache.Get(ctx, "flight-cache-1")
	require.NoError(t, err)
	assert.Equal(t, counts, got)
}

func TestAvailabilityCache_Miss(t *testing.T) {
	cache := newCacheTestClient(t)

	_, err := cache.Get(context.Background(), "flight-cache-missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestAvailabilityCache_Invalidate(t *testing.T) {
	cache := newCacheTestClient(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "flight-cache-2", map[string]int{"fare-economy": 10}, 1*time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "flight-cache-2"))

	_, err := cache.Get(ctx, "flight-cache-2")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestAvailabilityCache_SetOverwrites(t *testing.T) {
	cache := newCacheTestClient(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "flight-cache-3", map[string]int{"fare-economy": 10, "fare-business": 5}, 1*time.Minute))
	// 古い運賃クラスのフィールドが残らないこと
	require.NoError(t, cache.Set(ctx, "flight-cache-3", map[string]int{"fare-economy": 9}, 1*time.Minute))

	got, err := cache.Get(ctx, "flight-cache-3")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"fare-economy": 9}, got)
}
