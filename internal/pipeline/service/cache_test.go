package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, "crm:"), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	want := Stats{TotalOpportunities: 2, TotalValue: 3000, WeightedValue: 2200, AvgDealSize: 1500}
	require.NoError(t, cache.Set(ctx, cacheKeyStats, want, time.Minute))
	assert.True(t, mr.Exists("crm:"+cacheKeyStats))

	var got Stats
	hit, err := cache.Get(ctx, cacheKeyStats, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)
}

func TestRedisCacheMissAndExpiry(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	var got Stats
	hit, err := cache.Get(ctx, cacheKeyStats, &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, cacheKeyStats, Stats{}, time.Second))
	mr.FastForward(2 * time.Second)

	hit, err = cache.Get(ctx, cacheKeyStats, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCacheDelete(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, cacheKeyGroupsAll, []StageGroup{}, 0))
	require.NoError(t, cache.Set(ctx, cacheKeyStats, Stats{}, 0))
	require.NoError(t, cache.Delete(ctx, cacheKeyGroupsAll, cacheKeyStats))

	assert.False(t, mr.Exists("crm:"+cacheKeyGroupsAll))
	assert.False(t, mr.Exists("crm:"+cacheKeyStats))
	assert.NoError(t, cache.Delete(ctx))
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", Stats{TotalOpportunities: 1}, time.Minute))

	var got Stats
	hit, err := cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, got.TotalOpportunities)

	now = now.Add(time.Minute)
	hit, err = cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestMemoryCacheDelete(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", 1, 0))
	require.NoError(t, cache.Set(ctx, "b", 2, 0))
	require.NoError(t, cache.Delete(ctx, "a"))

	var v int
	hit, _ := cache.Get(ctx, "a", &v)
	assert.False(t, hit)
	hit, _ = cache.Get(ctx, "b", &v)
	assert.True(t, hit)
	assert.Equal(t, 2, v)
}
