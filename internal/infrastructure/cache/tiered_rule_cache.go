package cache

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/erp/attendance/internal/domain/rule"
)

// TieredRuleCache implements a two-tier caching strategy
// L1: Local in-memory cache (fast, but local to instance)
// L2: Shared cache, normally Redis
// Reads fall through to L2 and back-fill L1; writes and invalidations hit
// both tiers, and invalidations are broadcast so peers drop their L1.
type TieredRuleCache struct {
	l1Cache     *InMemoryRuleCache
	l2Cache     rule.ResultCache
	invalidator Invalidator
	config      rule.CacheConfig
	logger      *zap.Logger

	// Stats for monitoring
	l1Hits   int64
	l1Misses int64
	l2Hits   int64
	l2Misses int64
}

// TieredRuleCacheOption is a functional option for configuring the cache
type TieredRuleCacheOption func(*TieredRuleCache)

// WithTieredConfig sets the cache configuration
func WithTieredConfig(config rule.CacheConfig) TieredRuleCacheOption {
	return func(c *TieredRuleCache) {
		c.config = config
	}
}

// WithTieredLogger sets the logger for the cache
func WithTieredLogger(logger *zap.Logger) TieredRuleCacheOption {
	return func(c *TieredRuleCache) {
		c.logger = logger
	}
}

// NewTieredRuleCache creates a new tiered rule result cache. invalidator may be nil.
func NewTieredRuleCache(l1Cache *InMemoryRuleCache, l2Cache rule.ResultCache, invalidator Invalidator, opts ...TieredRuleCacheOption) *TieredRuleCache {
	cache := &TieredRuleCache{
		l1Cache:     l1Cache,
		l2Cache:     l2Cache,
		invalidator: invalidator,
		config:      rule.DefaultCacheConfig(),
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

// StartInvalidationSubscription listens for invalidations from other instances.
// It blocks, so callers usually run it in a goroutine.
func (c *TieredRuleCache) StartInvalidationSubscription(ctx context.Context) error {
	if c.invalidator == nil {
		return nil
	}
	return c.invalidator.Subscribe(ctx, func(msg InvalidationMessage) {
		c.handleInvalidationMessage(ctx, msg)
	})
}

// handleInvalidationMessage only touches L1; the sender already updated L2
func (c *TieredRuleCache) handleInvalidationMessage(ctx context.Context, msg InvalidationMessage) {
	switch msg.Action {
	case InvalidationActionRule:
		c.l1Cache.Invalidate(ctx, msg.RuleID)
	case InvalidationActionClear:
		c.l1Cache.Clear(ctx)
	default:
		c.logger.Warn("Unknown invalidation action", zap.String("action", string(msg.Action)))
	}
}

// Get retrieves a result from L1, falling back to L2
func (c *TieredRuleCache) Get(ctx context.Context, ruleID string, ec rule.ExecutionContext) (*rule.EvaluationResult, bool) {
	if result, ok := c.l1Cache.Get(ctx, ruleID, ec); ok {
		atomic.AddInt64(&c.l1Hits, 1)
		return result, true
	}
	atomic.AddInt64(&c.l1Misses, 1)

	result, ok := c.l2Cache.Get(ctx, ruleID, ec)
	if !ok {
		atomic.AddInt64(&c.l2Misses, 1)
		return nil, false
	}
	atomic.AddInt64(&c.l2Hits, 1)

	// Back-fill L1 with its shorter TTL
	c.l1Cache.SetWithTTL(ctx, ruleID, ec, result, c.config.L1TTL)
	return result, true
}

// Set stores a result in both tiers
func (c *TieredRuleCache) Set(ctx context.Context, ruleID string, ec rule.ExecutionContext, result *rule.EvaluationResult) {
	c.l2Cache.Set(ctx, ruleID, ec, result)
	c.l1Cache.SetWithTTL(ctx, ruleID, ec, result, c.config.L1TTL)
}

// Invalidate drops a rule from both tiers and tells other instances
func (c *TieredRuleCache) Invalidate(ctx context.Context, ruleID string) {
	c.l2Cache.Invalidate(ctx, ruleID)
	c.l1Cache.Invalidate(ctx, ruleID)
	c.publish(ctx, InvalidationMessage{Action: InvalidationActionRule, RuleID: ruleID})
}

// Clear empties both tiers and tells other instances
func (c *TieredRuleCache) Clear(ctx context.Context) {
	c.l2Cache.Clear(ctx)
	c.l1Cache.Clear(ctx)
	c.publish(ctx, InvalidationMessage{Action: InvalidationActionClear})
}

func (c *TieredRuleCache) publish(ctx context.Context, msg InvalidationMessage) {
	if c.invalidator == nil {
		return
	}
	if err := c.invalidator.Publish(ctx, msg); err != nil {
		c.logger.Warn("Failed to broadcast rule cache invalidation",
			zap.String("action", string(msg.Action)),
			zap.Error(err))
	}
}

// Stats reports a hit when either tier served the lookup
func (c *TieredRuleCache) Stats() rule.CacheStats {
	return rule.CacheStats{
		Hits:    atomic.LoadInt64(&c.l1Hits) + atomic.LoadInt64(&c.l2Hits),
		Misses:  atomic.LoadInt64(&c.l2Misses),
		Entries: c.l1Cache.Count(),
	}
}

// TierStats returns per-tier counters
func (c *TieredRuleCache) TierStats() (l1Hits, l1Misses, l2Hits, l2Misses int64) {
	return atomic.LoadInt64(&c.l1Hits),
		atomic.LoadInt64(&c.l1Misses),
		atomic.LoadInt64(&c.l2Hits),
		atomic.LoadInt64(&c.l2Misses)
}

// Close closes the invalidator and the L1 cache
func (c *TieredRuleCache) Close() error {
	var err error
	if c.invalidator != nil {
		err = c.invalidator.Close()
	}
	_ = c.l1Cache.Close()
	if closer, ok := c.l2Cache.(interface{ Close() error }); ok {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Ensure TieredRuleCache implements rule.ResultCache
var _ rule.ResultCache = (*TieredRuleCache)(nil)
