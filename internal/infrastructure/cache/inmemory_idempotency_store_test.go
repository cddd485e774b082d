package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/attendance/internal/infrastructure/config"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedStore(t *testing.T) (*InMemoryIdempotencyStore, *manualClock) {
	t.Helper()
	clock := &manualClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
	store := NewInMemoryIdempotencyStore(WithStoreClock(clock.Now))
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()

	t.Run("marks a new punch", func(t *testing.T) {
		isNew, err := store.MarkProcessed(ctx, "emp-1|dev-1|0900", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	})

	t.Run("rejects a repeat within the ttl", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "emp-2|dev-1|0900", time.Hour)
		require.NoError(t, err)

		isNew, err := store.MarkProcessed(ctx, "emp-2|dev-1|0900", time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew)
	})

	t.Run("accepts the key again after expiry", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "emp-3|dev-1|0900", time.Minute)
		require.NoError(t, err)

		clock.Advance(time.Minute)

		isNew, err := store.MarkProcessed(ctx, "emp-3|dev-1|0900", time.Minute)
		require.NoError(t, err)
		assert.True(t, isNew)
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "seen", time.Minute)
	require.NoError(t, err)
	processed, err = store.IsProcessed(ctx, "seen")
	require.NoError(t, err)
	assert.True(t, processed)

	clock.Advance(2 * time.Minute)
	processed, err = store.IsProcessed(ctx, "seen")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestInMemoryIdempotencyStore_Purge(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()

	_, _ = store.MarkProcessed(ctx, "short-1", time.Minute)
	_, _ = store.MarkProcessed(ctx, "short-2", time.Minute)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	assert.Equal(t, 3, store.Size())

	clock.Advance(5 * time.Minute)
	store.purge()

	assert.Equal(t, 1, store.Size())
	processed, err := store.IsProcessed(ctx, "long")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_ConcurrentMarks(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	const workers = 100
	results := make(chan bool, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, err := store.MarkProcessed(context.Background(), "same-punch", time.Hour)
			results <- err == nil && isNew
		}()
	}
	wg.Wait()
	close(results)

	fresh := 0
	for ok := range results {
		if ok {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore(WithSweepInterval(time.Millisecond))
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestRedisIdempotencyStore_Keys(t *testing.T) {
	assert.Equal(t, "attendance:punch:abc", NewRedisIdempotencyStoreWithClient(nil, "").Key("abc"))
	assert.Equal(t, "x:abc", NewRedisIdempotencyStoreWithClient(nil, "x:").Key("abc"))
}

func TestCreateDedupStore(t *testing.T) {
	unreachable := config.RedisConfig{Host: "127.0.0.1", Port: 1}
	dedup := config.DedupConfig{Enabled: true, TTL: time.Minute, KeyPrefix: "attendance:punch:"}

	t.Run("memory backend", func(t *testing.T) {
		f := NewRuleCacheFactory(config.CacheConfig{Backend: config.CacheBackendMemory}, unreachable)
		store, err := f.CreateDedupStore(dedup)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("falls back when Redis is unavailable", func(t *testing.T) {
		f := NewRuleCacheFactory(config.CacheConfig{Backend: config.CacheBackendRedis}, unreachable)
		store, err := f.CreateDedupStore(dedup)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("fails without fallback", func(t *testing.T) {
		f := NewRuleCacheFactory(config.CacheConfig{Backend: config.CacheBackendRedis}, unreachable, WithInMemoryFallback(false))
		_, err := f.CreateDedupStore(dedup)
		require.Error(t, err)
	})
}
