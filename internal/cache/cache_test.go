package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athenasec/athena/pkg/config"
)

func localOnlyCache(maxBytes int64, maxEntries int) *Service {
	return NewService(config.CacheConfig{
		MaxBytes:   maxBytes,
		MaxEntries: maxEntries,
		DefaultTTL: time.Minute,
	}, nil, nil, nil)
}

func setupRedisBackend(t *testing.T) (*miniredis.Miniredis, *RedisBackend) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisBackendFromClient(client, "athena:test")
}

func TestCache_SetAndGet(t *testing.T) {
	cache := localOnlyCache(1024, 10)
	ctx := context.Background()

	cache.Set(ctx, "key1", []byte("value1"), time.Minute)

	value, ok := cache.Get(ctx, "key1")
	require.True(t, ok)
	assert.Equal(t, []byte("value1"), value)

	_, ok = cache.Get(ctx, "missing")
	assert.False(t, ok)

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.EntryCount)
}

func TestCache_ZeroValueConfigStillCaches(t *testing.T) {
	cache := NewService(config.CacheConfig{}, nil, nil, nil)
	ctx := context.Background()

	cache.Set(ctx, "key1", []byte("value1"), 0)

	value, ok := cache.Get(ctx, "key1")
	require.True(t, ok)
	assert.Equal(t, []byte("value1"), value)
	assert.Equal(t, int64(0), cache.Stats().Evictions)
}

func TestCache_TTLExpiry(t *testing.T) {
	cache := localOnlyCache(1024, 10)
	ctx := context.Background()

	cache.Set(ctx, "key1", []byte("value1"), 15*time.Millisecond)

	_, ok := cache.Get(ctx, "key1")
	require.True(t, ok)

	time.Sleep(25 * time.Millisecond)

	// Expired entries are never returned as hits
	_, ok = cache.Get(ctx, "key1")
	assert.False(t, ok)

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 0, stats.EntryCount)
}

func TestCache_EvictsByEntryCount(t *testing.T) {
	cache := localOnlyCache(1<<20, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cache.Set(ctx, fmt.Sprintf("key%d", i), []byte("v"), time.Minute)
	}

	stats := cache.Stats()
	assert.Equal(t, 3, stats.EntryCount)
	assert.Equal(t, int64(2), stats.Evictions)

	// The oldest entries were evicted
	_, ok := cache.Get(ctx, "key0")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "key4")
	assert.True(t, ok)
}

func TestCache_EvictsByBytes(t *testing.T) {
	// Each entry is 4 key bytes + 10 value bytes; three entries exceed 40
	cache := localOnlyCache(40, 100)
	ctx := context.Background()

	cache.Set(ctx, "key1", []byte("0123456789"), time.Minute)
	cache.Set(ctx, "key2", []byte("0123456789"), time.Minute)
	cache.Set(ctx, "key3", []byte("0123456789"), time.Minute)

	stats := cache.Stats()
	assert.Equal(t, 2, stats.EntryCount)
	assert.LessOrEqual(t, stats.CurrentSizeBytes, int64(40))

	_, ok := cache.Get(ctx, "key1")
	assert.False(t, ok)
}

func TestCache_LRUOrderRespectsReads(t *testing.T) {
	cache := localOnlyCache(1<<20, 2)
	ctx := context.Background()

	cache.Set(ctx, "a", []byte("1"), time.Minute)
	cache.Set(ctx, "b", []byte("2"), time.Minute)

	// Touch "a" so "b" becomes least recently used
	_, ok := cache.Get(ctx, "a")
	require.True(t, ok)

	cache.Set(ctx, "c", []byte("3"), time.Minute)

	_, ok = cache.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = cache.Get(ctx, "b")
	assert.False(t, ok)
}

func TestCache_Clear(t *testing.T) {
	cache := localOnlyCache(1024, 10)
	ctx := context.Background()

	cache.Set(ctx, "key1", []byte("value1"), time.Minute)
	cache.Clear(ctx)

	_, ok := cache.Get(ctx, "key1")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Stats().EntryCount)
	assert.Equal(t, int64(0), cache.Stats().CurrentSizeBytes)
}

func TestCache_DistributedTierPopulatesLocal(t *testing.T) {
	_, backend := setupRedisBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "key1", []byte("remote"), time.Minute))

	cache := NewService(config.CacheConfig{
		MaxBytes:   1024,
		MaxEntries: 10,
		DefaultTTL: time.Minute,
	}, backend, nil, nil)

	// Local miss, distributed hit
	value, ok := cache.Get(ctx, "key1")
	require.True(t, ok)
	assert.Equal(t, []byte("remote"), value)
	assert.Equal(t, 1, cache.Stats().EntryCount)

	// Second read is served locally even if Redis loses the key
	require.NoError(t, backend.Clear(ctx))
	value, ok = cache.Get(ctx, "key1")
	require.True(t, ok)
	assert.Equal(t, []byte("remote"), value)
}

func TestCache_WriteThroughBothTiers(t *testing.T) {
	_, backend := setupRedisBackend(t)
	ctx := context.Background()

	cache := NewService(config.CacheConfig{
		MaxBytes:   1024,
		MaxEntries: 10,
		DefaultTTL: time.Minute,
	}, backend, nil, nil)

	cache.Set(ctx, "key1", []byte("value1"), time.Minute)

	value, found, err := backend.Get(ctx, "key1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("value1"), value)
}

func TestCache_BackendFailureDegradesToLocal(t *testing.T) {
	mr, backend := setupRedisBackend(t)
	ctx := context.Background()

	cache := NewService(config.CacheConfig{
		MaxBytes:   1024,
		MaxEntries: 10,
		DefaultTTL: time.Minute,
	}, backend, nil, nil)

	mr.Close()

	// Writes and reads still work against the local tier
	cache.Set(ctx, "key1", []byte("value1"), time.Minute)

	value, ok := cache.Get(ctx, "key1")
	require.True(t, ok)
	assert.Equal(t, []byte("value1"), value)
}

func TestRedisBackend_MissingKey(t *testing.T) {
	_, backend := setupRedisBackend(t)

	_, found, err := backend.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, found)
}
