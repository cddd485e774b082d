package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/attendance/internal/domain/rule"
)

// Constants for Redis cache configuration
const (
	defaultScanBatchSize = 100
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// newRedisClient creates a client and verifies the connection
func newRedisClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisRuleCache implements rule.ResultCache using Redis. Values are JSON
// encoded under {prefix}:{ruleID}:{fingerprint}. Redis failures are logged
// and reported as misses.
type RedisRuleCache struct {
	client     *redis.Client
	ownsClient bool // true if we created the client and should close it
	config     rule.CacheConfig
	logger     *zap.Logger

	hits   int64
	misses int64
}

// RedisRuleCacheOption is a functional option for configuring the cache
type RedisRuleCacheOption func(*RedisRuleCache)

// WithCacheConfig sets the cache configuration
func WithCacheConfig(config rule.CacheConfig) RedisRuleCacheOption {
	return func(c *RedisRuleCache) {
		c.config = config
	}
}

// WithCacheLogger sets the logger for the cache
func WithCacheLogger(logger *zap.Logger) RedisRuleCacheOption {
	return func(c *RedisRuleCache) {
		c.logger = logger
	}
}

// NewRedisRuleCache creates a new Redis-based rule result cache
func NewRedisRuleCache(cfg RedisConfig, opts ...RedisRuleCacheOption) (*RedisRuleCache, error) {
	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	cache := NewRedisRuleCacheWithClient(client, opts...)
	cache.ownsClient = true
	return cache, nil
}

// NewRedisRuleCacheWithClient creates a cache with an existing Redis client
// Note: The caller retains ownership of the client and is responsible for closing it
func NewRedisRuleCacheWithClient(client *redis.Client, opts ...RedisRuleCacheOption) *RedisRuleCache {
	cache := &RedisRuleCache{
		client: client,
		config: rule.DefaultCacheConfig(),
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

// resultKey generates the cache key for a rule result
func (c *RedisRuleCache) resultKey(ruleID, fingerprint string) string {
	return fmt.Sprintf("%s:%s:%s", c.config.KeyPrefix, ruleID, fingerprint)
}

// Get retrieves a cached result
func (c *RedisRuleCache) Get(ctx context.Context, ruleID string, ec rule.ExecutionContext) (*rule.EvaluationResult, bool) {
	key := c.resultKey(ruleID, ec.Fingerprint())

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		atomic.AddInt64(&c.misses, 1)
		c.logger.Debug("Cache miss for rule result", zap.String("rule_id", ruleID))
		return nil, false
	}
	if err != nil {
		atomic.AddInt64(&c.misses, 1)
		c.logger.Error("Failed to get rule result from cache",
			zap.String("rule_id", ruleID),
			zap.Error(err))
		return nil, false
	}

	var result rule.EvaluationResult
	if err := json.Unmarshal(data, &result); err != nil {
		atomic.AddInt64(&c.misses, 1)
		c.logger.Error("Failed to unmarshal rule result",
			zap.String("rule_id", ruleID),
			zap.Error(err))
		// Delete corrupted cache entry
		_ = c.client.Del(ctx, key)
		return nil, false
	}

	atomic.AddInt64(&c.hits, 1)
	c.logger.Debug("Cache hit for rule result", zap.String("rule_id", ruleID))
	return &result, true
}

// Set stores a result for config.TTL
func (c *RedisRuleCache) Set(ctx context.Context, ruleID string, ec rule.ExecutionContext, result *rule.EvaluationResult) {
	if result == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("Failed to marshal rule result",
			zap.String("rule_id", ruleID),
			zap.Error(err))
		return
	}

	key := c.resultKey(ruleID, ec.Fingerprint())
	if err := c.client.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		c.logger.Error("Failed to set rule result in cache",
			zap.String("rule_id", ruleID),
			zap.Error(err))
		return
	}

	c.logger.Debug("Cached rule result",
		zap.String("rule_id", ruleID),
		zap.Duration("ttl", c.config.TTL))
}

// Invalidate removes every cached result for a rule
func (c *RedisRuleCache) Invalidate(ctx context.Context, ruleID string) {
	pattern := fmt.Sprintf("%s:%s:*", c.config.KeyPrefix, ruleID)
	if err := c.deleteMatching(ctx, pattern); err != nil {
		c.logger.Error("Failed to invalidate rule results",
			zap.String("rule_id", ruleID),
			zap.Error(err))
	}
}

// Clear removes every cached rule result
func (c *RedisRuleCache) Clear(ctx context.Context) {
	if err := c.deleteMatching(ctx, c.config.KeyPrefix+":*"); err != nil {
		c.logger.Error("Failed to clear rule result cache", zap.Error(err))
	}
}

// deleteMatching uses SCAN to avoid blocking Redis with KEYS
func (c *RedisRuleCache) deleteMatching(ctx context.Context, pattern string) error {
	var cursor uint64
	var deletedCount int64

	for {
		var keys []string
		var err error
		keys, cursor, err = c.client.Scan(ctx, cursor, pattern, defaultScanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}

		if len(keys) > 0 {
			deleted, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
			deletedCount += deleted
		}

		if cursor == 0 {
			break
		}
	}

	c.logger.Debug("Deleted rule result keys",
		zap.String("pattern", pattern),
		zap.Int64("deleted_count", deletedCount))
	return nil
}

// Stats returns hit/miss counters. Entries is not tracked for Redis.
func (c *RedisRuleCache) Stats() rule.CacheStats {
	return rule.CacheStats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
}

// Close releases any resources held by the cache
func (c *RedisRuleCache) Close() error {
	// Only close client if we own it
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}

// Client returns the underlying Redis client
func (c *RedisRuleCache) Client() *redis.Client {
	return c.client
}

// Ensure RedisRuleCache implements rule.ResultCache
var _ rule.ResultCache = (*RedisRuleCache)(nil)
