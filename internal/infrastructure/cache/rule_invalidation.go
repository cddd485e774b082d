package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/attendance/internal/domain/rule"
)

// Constants for invalidator configuration
const (
	defaultCloseTimeout = 5 * time.Second
)

// InvalidationAction is the kind of cache invalidation broadcast
type InvalidationAction string

const (
	InvalidationActionRule  InvalidationAction = "invalidate_rule"
	InvalidationActionClear InvalidationAction = "clear"
)

// InvalidationMessage is published when cached rule results go stale
type InvalidationMessage struct {
	Action    InvalidationAction `json:"action"`
	RuleID    string             `json:"rule_id,omitempty"`
	Timestamp int64              `json:"timestamp"`
}

// Invalidator broadcasts invalidations between instances
type Invalidator interface {
	Publish(ctx context.Context, msg InvalidationMessage) error
	Subscribe(ctx context.Context, callback func(msg InvalidationMessage)) error
	Close() error
}

// RedisRuleInvalidator implements Invalidator using Redis Pub/Sub
type RedisRuleInvalidator struct {
	client     *redis.Client
	ownsClient bool // true if we created the client and should close it
	channel    string
	logger     *zap.Logger
	cancelFn   context.CancelFunc
	doneCh     chan struct{}
	doneOnce   sync.Once
	mu         sync.Mutex
	isRunning  bool
}

// RedisRuleInvalidatorOption is a functional option for configuring the invalidator
type RedisRuleInvalidatorOption func(*RedisRuleInvalidator)

// WithInvalidatorChannel sets the Pub/Sub channel name
func WithInvalidatorChannel(channel string) RedisRuleInvalidatorOption {
	return func(i *RedisRuleInvalidator) {
		if channel != "" {
			i.channel = channel
		}
	}
}

// WithInvalidatorLogger sets the logger for the invalidator
func WithInvalidatorLogger(logger *zap.Logger) RedisRuleInvalidatorOption {
	return func(i *RedisRuleInvalidator) {
		i.logger = logger
	}
}

// NewRedisRuleInvalidator creates a new Redis Pub/Sub invalidator
func NewRedisRuleInvalidator(cfg RedisConfig, opts ...RedisRuleInvalidatorOption) (*RedisRuleInvalidator, error) {
	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	invalidator := NewRedisRuleInvalidatorWithClient(client, opts...)
	invalidator.ownsClient = true
	return invalidator, nil
}

// NewRedisRuleInvalidatorWithClient creates an invalidator with an existing Redis client
// Note: The caller retains ownership of the client and is responsible for closing it
func NewRedisRuleInvalidatorWithClient(client *redis.Client, opts ...RedisRuleInvalidatorOption) *RedisRuleInvalidator {
	invalidator := &RedisRuleInvalidator{
		client:  client,
		channel: rule.DefaultCacheConfig().InvalidationChannel,
		logger:  zap.NewNop(),
		doneCh:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(invalidator)
	}

	return invalidator
}

// Publish sends an invalidation to all subscribers
func (i *RedisRuleInvalidator) Publish(ctx context.Context, msg InvalidationMessage) error {
	// Set timestamp if not set
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixNano()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := i.client.Publish(ctx, i.channel, data).Err(); err != nil {
		i.logger.Error("Failed to publish rule cache invalidation",
			zap.String("channel", i.channel),
			zap.Error(err))
		return fmt.Errorf("failed to publish message: %w", err)
	}

	i.logger.Debug("Published rule cache invalidation",
		zap.String("action", string(msg.Action)),
		zap.String("rule_id", msg.RuleID),
		zap.String("channel", i.channel))

	return nil
}

// Subscribe listens for invalidations and blocks until ctx is cancelled or
// Close is called. Callbacks run in their own goroutine.
func (i *RedisRuleInvalidator) Subscribe(ctx context.Context, callback func(msg InvalidationMessage)) error {
	i.mu.Lock()
	if i.isRunning {
		i.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	i.isRunning = true
	subCtx, cancel := context.WithCancel(ctx)
	i.cancelFn = cancel
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		i.isRunning = false
		i.mu.Unlock()
		i.markDone()
	}()

	pubsub := i.client.Subscribe(subCtx, i.channel)
	defer pubsub.Close()

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}

	i.logger.Info("Subscribed to rule cache invalidation channel",
		zap.String("channel", i.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			i.logger.Info("Rule cache invalidation subscription stopped")
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				i.logger.Warn("Rule cache invalidation channel closed")
				return nil
			}

			var m InvalidationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				i.logger.Error("Failed to unmarshal invalidation message",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}

			go func(m InvalidationMessage) {
				defer func() {
					if r := recover(); r != nil {
						i.logger.Error("Panic in invalidation callback",
							zap.Any("panic", r))
					}
				}()
				callback(m)
			}(m)
		}
	}
}

// markDone safely marks the invalidator as done
func (i *RedisRuleInvalidator) markDone() {
	i.doneOnce.Do(func() {
		close(i.doneCh)
	})
}

// Close stops the subscription and releases the client if owned
func (i *RedisRuleInvalidator) Close() error {
	i.mu.Lock()
	cancelFn := i.cancelFn
	i.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		// Wait for subscription to stop with timeout
		select {
		case <-i.doneCh:
		case <-time.After(defaultCloseTimeout):
			i.logger.Warn("Timeout waiting for subscription to stop")
		}
	}

	// Only close client if we own it
	if i.ownsClient {
		return i.client.Close()
	}
	return nil
}

// PublishRuleInvalidation announces that a rule's cached results are stale
func (i *RedisRuleInvalidator) PublishRuleInvalidation(ctx context.Context, ruleID string) error {
	return i.Publish(ctx, InvalidationMessage{Action: InvalidationActionRule, RuleID: ruleID})
}

// PublishClear announces that every cached result is stale
func (i *RedisRuleInvalidator) PublishClear(ctx context.Context) error {
	return i.Publish(ctx, InvalidationMessage{Action: InvalidationActionClear})
}

// Ensure RedisRuleInvalidator implements Invalidator
var _ Invalidator = (*RedisRuleInvalidator)(nil)
