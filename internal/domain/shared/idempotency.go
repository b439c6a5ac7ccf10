package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which remote event IDs have already been
// handled. Webhook ingestion consults it to drop provider redeliveries
// without re-triggering a sync.
type IdempotencyStore interface {
	// MarkProcessed claims an event ID for ttl. The first caller gets
	// true; everyone after gets false until the claim expires.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether the event ID holds an active claim.
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	Close() error
}

// IdempotencyConfig controls deduplication of inbound events.
type IdempotencyConfig struct {
	// TTL is how long a processed event ID stays claimed. After it
	// lapses the same ID is treated as new again.
	TTL time.Duration

	// Enabled turns the dedup check off entirely when false.
	Enabled bool
}

// DefaultIdempotencyConfig keeps claims for a day, which covers the
// redelivery windows of the supported providers.
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}