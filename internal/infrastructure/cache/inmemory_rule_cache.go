package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/erp/attendance/internal/domain/rule"
)

// InMemoryRuleCache implements rule.ResultCache using in-memory storage.
// It is used on its own for single-instance deployments and as L1 in front of Redis.
type InMemoryRuleCache struct {
	entries sync.Map // map[ruleKey]*cacheEntry[rule.EvaluationResult]
	ttl     time.Duration
	config  rule.CacheConfig
	logger  *zap.Logger
	stopCh  chan struct{} // Channel to stop the cleanup goroutine
	stopped int32         // Atomic flag to track if cache is stopped

	// Stats for monitoring
	hits   int64
	misses int64
}

// ruleKey addresses one (rule, context fingerprint) pair
type ruleKey struct {
	ruleID      string
	fingerprint string
}

// cacheEntry wraps a cached value with expiration time
type cacheEntry[T any] struct {
	value     *T
	expiresAt time.Time
}

// isExpired checks if the cache entry has expired
func (e *cacheEntry[T]) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// InMemoryRuleCacheOption is a functional option for configuring the cache
type InMemoryRuleCacheOption func(*InMemoryRuleCache)

// WithInMemoryConfig sets the cache configuration
func WithInMemoryConfig(config rule.CacheConfig) InMemoryRuleCacheOption {
	return func(c *InMemoryRuleCache) {
		c.config = config
	}
}

// WithInMemoryTTL overrides the entry TTL; the default is config.TTL
func WithInMemoryTTL(ttl time.Duration) InMemoryRuleCacheOption {
	return func(c *InMemoryRuleCache) {
		c.ttl = ttl
	}
}

// WithInMemoryLogger sets the logger for the cache
func WithInMemoryLogger(logger *zap.Logger) InMemoryRuleCacheOption {
	return func(c *InMemoryRuleCache) {
		c.logger = logger
	}
}

// NewInMemoryRuleCache creates a new in-memory rule result cache
func NewInMemoryRuleCache(opts ...InMemoryRuleCacheOption) *InMemoryRuleCache {
	cache := &InMemoryRuleCache{
		config: rule.DefaultCacheConfig(),
		logger: zap.NewNop(),
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cache)
	}
	if cache.ttl <= 0 {
		cache.ttl = cache.config.TTL
	}

	// Start background cleanup goroutine
	go cache.cleanupExpired()

	return cache
}

// Get retrieves a cached result
func (c *InMemoryRuleCache) Get(ctx context.Context, ruleID string, ec rule.ExecutionContext) (*rule.EvaluationResult, bool) {
	key := ruleKey{ruleID: ruleID, fingerprint: ec.Fingerprint()}

	if value, ok := c.entries.Load(key); ok {
		entry := value.(*cacheEntry[rule.EvaluationResult])
		if !entry.isExpired() {
			atomic.AddInt64(&c.hits, 1)
			c.logger.Debug("L1 cache hit for rule result", zap.String("rule_id", ruleID))
			return entry.value.Clone(), true
		}
		// Expired, remove from cache
		c.entries.Delete(key)
	}

	atomic.AddInt64(&c.misses, 1)
	c.logger.Debug("L1 cache miss for rule result", zap.String("rule_id", ruleID))
	return nil, false
}

// Set stores a result for the configured TTL
func (c *InMemoryRuleCache) Set(ctx context.Context, ruleID string, ec rule.ExecutionContext, result *rule.EvaluationResult) {
	c.SetWithTTL(ctx, ruleID, ec, result, c.ttl)
}

// SetWithTTL stores a result for ttl
func (c *InMemoryRuleCache) SetWithTTL(_ context.Context, ruleID string, ec rule.ExecutionContext, result *rule.EvaluationResult, ttl time.Duration) {
	if result == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	key := ruleKey{ruleID: ruleID, fingerprint: ec.Fingerprint()}
	c.entries.Store(key, &cacheEntry[rule.EvaluationResult]{
		value:     result.Clone(),
		expiresAt: time.Now().Add(ttl),
	})
	c.logger.Debug("Cached rule result in L1",
		zap.String("rule_id", ruleID),
		zap.Duration("ttl", ttl))
}

// Invalidate removes every cached result for a rule
func (c *InMemoryRuleCache) Invalidate(_ context.Context, ruleID string) {
	removed := 0
	c.entries.Range(func(key, _ any) bool {
		if key.(ruleKey).ruleID == ruleID {
			c.entries.Delete(key)
			removed++
		}
		return true
	})
	c.logger.Debug("Invalidated rule results in L1 cache",
		zap.String("rule_id", ruleID),
		zap.Int("removed", removed))
}

// Clear removes all cached results
func (c *InMemoryRuleCache) Clear(_ context.Context) {
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		return true
	})
	c.logger.Info("Cleared L1 rule result cache")
}

// Stats returns cache statistics
func (c *InMemoryRuleCache) Stats() rule.CacheStats {
	return rule.CacheStats{
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
		Entries: c.Count(),
	}
}

// ResetStats resets the cache statistics
func (c *InMemoryRuleCache) ResetStats() {
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Count returns the number of entries in the cache, expired ones included
func (c *InMemoryRuleCache) Count() int {
	count := 0
	c.entries.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// Close stops the cleanup goroutine
func (c *InMemoryRuleCache) Close() error {
	// Only close once
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

// cleanupExpired periodically removes expired entries from the cache
func (c *InMemoryRuleCache) cleanupExpired() {
	interval := c.config.CleanupInterval
	if interval <= 0 {
		interval = rule.DefaultCacheConfig().CleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						c.logger.Error("Panic in cache cleanup",
							zap.Any("panic", r))
					}
				}()
				c.doCleanup()
			}()
		}
	}
}

// doCleanup removes expired entries
func (c *InMemoryRuleCache) doCleanup() {
	removed := 0
	c.entries.Range(func(key, value any) bool {
		if value.(*cacheEntry[rule.EvaluationResult]).isExpired() {
			c.entries.Delete(key)
			removed++
		}
		return true
	})

	if removed > 0 {
		c.logger.Debug("Cleaned up expired L1 cache entries",
			zap.Int("removed", removed))
	}
}

// Ensure InMemoryRuleCache implements rule.ResultCache
var _ rule.ResultCache = (*InMemoryRuleCache)(nil)
