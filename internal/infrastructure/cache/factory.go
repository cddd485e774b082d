package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/domain/shared"
	"github.com/erp/attendance/internal/infrastructure/config"
)

// RuleCacheFactory creates rule result caches based on configuration
type RuleCacheFactory struct {
	cacheConfig           config.CacheConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// RuleCacheFactoryOption is a functional option for configuring the factory
type RuleCacheFactoryOption func(*RuleCacheFactory)

// WithLogger sets the logger for the factory and the caches it creates
func WithLogger(logger *zap.Logger) RuleCacheFactoryOption {
	return func(f *RuleCacheFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory cache when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) RuleCacheFactoryOption {
	return func(f *RuleCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewRuleCacheFactory creates a new factory
func NewRuleCacheFactory(cacheCfg config.CacheConfig, redisCfg config.RedisConfig, opts ...RuleCacheFactoryOption) *RuleCacheFactory {
	f := &RuleCacheFactory{
		cacheConfig:           cacheCfg,
		redisConfig:           redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true, // Default to allowing fallback
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// ruleCacheConfig maps the application config onto the domain cache config
func (f *RuleCacheFactory) ruleCacheConfig() rule.CacheConfig {
	cfg := rule.DefaultCacheConfig()
	if f.cacheConfig.TTL > 0 {
		cfg.TTL = f.cacheConfig.TTL
	}
	if f.cacheConfig.L1TTL > 0 {
		cfg.L1TTL = f.cacheConfig.L1TTL
	}
	if f.cacheConfig.CleanupInterval > 0 {
		cfg.CleanupInterval = f.cacheConfig.CleanupInterval
	}
	if f.cacheConfig.KeyPrefix != "" {
		cfg.KeyPrefix = f.cacheConfig.KeyPrefix
	}
	if f.cacheConfig.InvalidationChannel != "" {
		cfg.InvalidationChannel = f.cacheConfig.InvalidationChannel
	}
	return cfg
}

func (f *RuleCacheFactory) redisConnConfig() RedisConfig {
	return RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}
}

// CreateInMemoryCache creates an in-memory cache
// Suitable for single-instance deployments and testing
func (f *RuleCacheFactory) CreateInMemoryCache() *InMemoryRuleCache {
	return NewInMemoryRuleCache(
		WithInMemoryConfig(f.ruleCacheConfig()),
		WithInMemoryLogger(f.logger),
	)
}

// CreateRedisCache creates a Redis-backed cache
func (f *RuleCacheFactory) CreateRedisCache() (*RedisRuleCache, error) {
	c, err := NewRedisRuleCache(f.redisConnConfig(),
		WithCacheConfig(f.ruleCacheConfig()),
		WithCacheLogger(f.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis rule cache: %w", err)
	}
	return c, nil
}

// CreateTieredCache creates an L1 memory / L2 Redis cache sharing one client
// for storage and invalidation broadcasts
func (f *RuleCacheFactory) CreateTieredCache() (*TieredRuleCache, error) {
	cfg := f.ruleCacheConfig()

	l2, err := f.CreateRedisCache()
	if err != nil {
		return nil, err
	}
	invalidator := NewRedisRuleInvalidatorWithClient(l2.Client(),
		WithInvalidatorChannel(cfg.InvalidationChannel),
		WithInvalidatorLogger(f.logger),
	)
	l1 := NewInMemoryRuleCache(
		WithInMemoryConfig(cfg),
		WithInMemoryTTL(cfg.L1TTL),
		WithInMemoryLogger(f.logger),
	)

	return NewTieredRuleCache(l1, l2, invalidator,
		WithTieredConfig(cfg),
		WithTieredLogger(f.logger),
	), nil
}

// CreateCache creates the cache named by the configured backend. When Redis
// is unavailable and fallback is allowed, an in-memory cache is returned.
func (f *RuleCacheFactory) CreateCache() (rule.ResultCache, error) {
	var (
		c   rule.ResultCache
		err error
	)
	switch f.cacheConfig.Backend {
	case "", config.CacheBackendMemory:
		f.logger.Info("using in-memory rule cache")
		return f.CreateInMemoryCache(), nil
	case config.CacheBackendRedis:
		c, err = f.CreateRedisCache()
	case config.CacheBackendTiered:
		c, err = f.CreateTieredCache()
	default:
		return nil, fmt.Errorf("unknown cache backend %q", f.cacheConfig.Backend)
	}
	if err == nil {
		f.logger.Info("using Redis-backed rule cache", zap.String("backend", f.cacheConfig.Backend))
		return c, nil
	}

	// Check if fallback is allowed
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for rule cache but unavailable: %w", err)
	}

	// Fall back to in-memory with warning
	f.logger.Warn("Redis unavailable, falling back to in-memory rule cache. "+
		"Cached results will not be shared between instances.",
		zap.Error(err),
	)
	return f.CreateInMemoryCache(), nil
}

// CreateDedupStore creates the punch deduplication store. It uses Redis
// whenever the rule cache backend does, with the same fallback rule.
func (f *RuleCacheFactory) CreateDedupStore(dedup config.DedupConfig) (shared.IdempotencyStore, error) {
	if f.cacheConfig.Backend == "" || f.cacheConfig.Backend == config.CacheBackendMemory {
		return NewInMemoryIdempotencyStore(), nil
	}

	store, err := NewRedisIdempotencyStore(f.redisConnConfig(), dedup.KeyPrefix)
	if err == nil {
		return store, nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for punch deduplication but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory punch deduplication",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}

// NewRuleCache is shorthand for NewRuleCacheFactory(...).CreateCache()
func NewRuleCache(cacheCfg config.CacheConfig, redisCfg config.RedisConfig, logger *zap.Logger) (rule.ResultCache, error) {
	return NewRuleCacheFactory(cacheCfg, redisCfg, WithLogger(logger)).CreateCache()
}
