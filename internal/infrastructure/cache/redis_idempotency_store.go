package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erp/attendance/internal/domain/shared"
)

// DefaultDedupKeyPrefix namespaces punch deduplication keys
const DefaultDedupKeyPrefix = "attendance:punch:"

// RedisIdempotencyStore shares processed keys between instances using
// SET NX with an expiry
type RedisIdempotencyStore struct {
	client     *redis.Client
	ownsClient bool
	keyPrefix  string
}

// NewRedisIdempotencyStore connects to Redis and returns a store that owns the client
func NewRedisIdempotencyStore(cfg RedisConfig, keyPrefix string) (*RedisIdempotencyStore, error) {
	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	s := NewRedisIdempotencyStoreWithClient(client, keyPrefix)
	s.ownsClient = true
	return s, nil
}

// NewRedisIdempotencyStoreWithClient wraps an existing client. Close leaves it open.
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = DefaultDedupKeyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed sets the key if absent; the return value reports whether it was set
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark %s processed: %w", key, err)
	}
	return ok, nil
}

// IsProcessed reports whether the key exists
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("check %s processed: %w", key, err)
	}
	return n > 0, nil
}

// Close closes the client when the store created it
func (s *RedisIdempotencyStore) Close() error {
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}

// Key returns the Redis key used for key
func (s *RedisIdempotencyStore) Key(key string) string {
	return s.keyPrefix + key
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
