package query_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fivetwenty-io/postgrestx/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	t.Parallel()

	cache := query.NewMemoryCache(10)
	ctx := context.Background()

	entry := &query.CacheEntry{
		Data:      []byte("test data"),
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}

	// Set entry
	err := cache.Set(ctx, "key1", entry)
	require.NoError(t, err)

	// Get entry
	retrieved, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, entry.Data, retrieved.Data)
}

func TestMemoryCache_GetNonExistent(t *testing.T) {
	t.Parallel()

	cache := query.NewMemoryCache(10)
	ctx := context.Background()

	_, err := cache.Get(ctx, "nonexistent")
	require.ErrorIs(t, err, query.ErrKeyNotFound)
}

func TestMemoryCache_GetExpired(t *testing.T) {
	t.Parallel()

	cache := query.NewMemoryCache(10)
	ctx := context.Background()

	entry := &query.CacheEntry{
		Data:      []byte("test data"),
		ExpiresAt: time.Now().Add(-1 * time.Hour), // Already expired
	}

	err := cache.Set(ctx, "key1", entry)
	require.NoError(t, err)

	_, err = cache.Get(ctx, "key1")
	require.ErrorIs(t, err, query.ErrEntryExpired)
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryCache_ZeroExpiryNeverExpires(t *testing.T) {
	t.Parallel()

	cache := query.NewMemoryCache(10)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key1", &query.CacheEntry{Data: []byte("forever")}))
	assert.True(t, cache.Has(ctx, "key1"))
}

func TestMemoryCache_Delete(t *testing.T) {
	t.Parallel()

	cache := query.NewMemoryCache(10)
	ctx := context.Background()

	entry := &query.CacheEntry{
		Data:      []byte("test data"),
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}

	// Set and verify
	err := cache.Set(ctx, "key1", entry)
	require.NoError(t, err)
	assert.True(t, cache.Has(ctx, "key1"))

	// Delete
	err = cache.Delete(ctx, "key1")
	require.NoError(t, err)

	// Verify deleted
	assert.False(t, cache.Has(ctx, "key1"))
}

func TestMemoryCache_DeletePrefix(t *testing.T) {
	t.Parallel()

	cache := query.NewMemoryCache(10)
	ctx := context.Background()

	for _, key := range []string{
		"postgrest.table.people",
		"postgrest.table.people.abc",
		"postgrest.table.people.def",
		"postgrest.table.peoples.abc",
		"postgrest.rpc.people",
	} {
		require.NoError(t, cache.Set(ctx, key, &query.CacheEntry{Data: []byte(key)}))
	}

	err := cache.DeletePrefix(ctx, "postgrest.table.people")
	require.NoError(t, err)

	assert.False(t, cache.Has(ctx, "postgrest.table.people"))
	assert.False(t, cache.Has(ctx, "postgrest.table.people.abc"))
	assert.False(t, cache.Has(ctx, "postgrest.table.people.def"))
	assert.True(t, cache.Has(ctx, "postgrest.table.peoples.abc"))
	assert.True(t, cache.Has(ctx, "postgrest.rpc.people"))
}

func TestMemoryCache_Clear(t *testing.T) {
	t.Parallel()

	cache := query.NewMemoryCache(10)
	ctx := context.Background()

	// Add multiple entries
	for i := range 3 {
		entry := &query.CacheEntry{
			Data:      []byte("test data"),
			ExpiresAt: time.Now().Add(1 * time.Hour),
		}
		_ = cache.Set(ctx, string(rune('a'+i)), entry)
	}

	// Verify entries exist
	assert.True(t, cache.Has(ctx, "a"))
	assert.True(t, cache.Has(ctx, "b"))
	assert.True(t, cache.Has(ctx, "c"))

	// Clear cache
	err := cache.Clear(ctx)
	require.NoError(t, err)

	// Verify all cleared
	assert.False(t, cache.Has(ctx, "a"))
	assert.False(t, cache.Has(ctx, "b"))
	assert.False(t, cache.Has(ctx, "c"))
}

func TestMemoryCache_MaxSize(t *testing.T) {
	t.Parallel()

	cache := query.NewMemoryCache(2)
	ctx := context.Background()

	// Add entries beyond max size; "a" expires first
	for i := range 3 {
		entry := &query.CacheEntry{
			Data:      []byte("test data"),
			ExpiresAt: time.Now().Add(time.Duration(i+1) * time.Hour),
		}
		_ = cache.Set(ctx, string(rune('a'+i)), entry)
	}

	assert.Equal(t, 2, cache.Len())
	assert.False(t, cache.Has(ctx, "a"))
	assert.True(t, cache.Has(ctx, "b"))
	assert.True(t, cache.Has(ctx, "c"))
}

func TestMemoryCache_MaxSizeKeepsEntriesWithoutExpiry(t *testing.T) {
	t.Parallel()

	cache := query.NewMemoryCache(2)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "forever", &query.CacheEntry{Data: []byte("x")}))
	require.NoError(t, cache.Set(ctx, "soon", &query.CacheEntry{Data: []byte("y"), ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, cache.Set(ctx, "later", &query.CacheEntry{Data: []byte("z"), ExpiresAt: time.Now().Add(2 * time.Hour)}))

	assert.True(t, cache.Has(ctx, "forever"))
	assert.False(t, cache.Has(ctx, "soon"))
	assert.True(t, cache.Has(ctx, "later"))
}

func TestMemoryCache_Cleanup(t *testing.T) {
	t.Parallel()

	cache := query.NewMemoryCache(10)
	ctx := context.Background()

	// Add expired and non-expired entries
	expiredEntry := &query.CacheEntry{
		Data:      []byte("expired"),
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	}
	validEntry := &query.CacheEntry{
		Data:      []byte("valid"),
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}

	_ = cache.Set(ctx, "expired", expiredEntry)
	_ = cache.Set(ctx, "valid", validEntry)

	// Run cleanup
	cache.Cleanup()

	assert.Equal(t, 1, cache.Len())
	assert.True(t, cache.Has(ctx, "valid"))
}

func TestMemoryCache_StartCleanup(t *testing.T) {
	t.Parallel()

	cache := query.NewMemoryCache(10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = cache.Set(ctx, "expired", &query.CacheEntry{
		Data:      []byte("expired"),
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	})

	cache.StartCleanup(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return cache.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestNATSKVCache(t *testing.T) {
	t.Parallel()

	url := os.Getenv("PGRESTX_TEST_NATS_URL")
	if url == "" {
		t.Skip("Skipping test that requires a NATS server (set PGRESTX_TEST_NATS_URL)")
	}

	cache, err := query.NewNATSKVCache(&query.NATSKVConfig{URL: url, Bucket: "pgrestx-test"})
	require.NoError(t, err)

	defer cache.Close()

	exerciseSharedCache(t, cache)
}

func TestRedisCache(t *testing.T) {
	t.Parallel()

	addr := os.Getenv("PGRESTX_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping test that requires a Redis server (set PGRESTX_TEST_REDIS_ADDR)")
	}

	cache, err := query.NewRedisCache(&query.RedisConfig{Addr: addr, Prefix: "pgrestx-test:"})
	require.NoError(t, err)

	defer func() {
		_ = cache.Close()
	}()

	exerciseSharedCache(t, cache)
}

func exerciseSharedCache(t *testing.T, cache query.Cache) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, cache.Clear(ctx))

	entry := &query.CacheEntry{
		Data:      []byte(`{"data":[]}`),
		ExpiresAt: time.Now().Add(time.Hour),
	}

	require.NoError(t, cache.Set(ctx, "postgrest.table.people.abc", entry))
	require.NoError(t, cache.Set(ctx, "postgrest.table.tasks.abc", entry))

	retrieved, err := cache.Get(ctx, "postgrest.table.people.abc")
	require.NoError(t, err)
	assert.Equal(t, entry.Data, retrieved.Data)

	require.NoError(t, cache.DeletePrefix(ctx, "postgrest.table.people"))
	assert.False(t, cache.Has(ctx, "postgrest.table.people.abc"))
	assert.True(t, cache.Has(ctx, "postgrest.table.tasks.abc"))

	_, err = cache.Get(ctx, "postgrest.table.missing")
	require.ErrorIs(t, err, query.ErrKeyNotFound)

	require.NoError(t, cache.Clear(ctx))
	assert.False(t, cache.Has(ctx, "postgrest.table.tasks.abc"))
}
