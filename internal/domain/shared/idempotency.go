package shared

import (
	"context"
	"time"
)

// IdempotencyStore claims keys for a limited time. Punch deduplication
// claims punch fingerprints and idempotent event handlers claim event IDs.
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl and reports whether this call made
	// the claim. A key that is still claimed returns false.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	IsProcessed(ctx context.Context, key string) (bool, error)

	Close() error
}

// IdempotencyConfig is how an idempotent handler uses its store
type IdempotencyConfig struct {
	Enabled bool
	TTL     time.Duration // how long a handled event ID is remembered
}

// DefaultIdempotencyConfig remembers handled events for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{Enabled: true, TTL: 24 * time.Hour}
}
