package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/shared"
)

// RedisLimiter counts requests in fixed one-minute and one-day windows
// shared across all instances. Counters are incremented first and
// checked after, so a burst racing past the budget overshoots by at
// most the number of concurrent callers, never silently under-counts.
type RedisLimiter struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisLimiter creates a limiter backed by an existing Redis client.
func NewRedisLimiter(client *redis.Client, keyPrefix string) *RedisLimiter {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}
	return &RedisLimiter{client: client, keyPrefix: keyPrefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, connectionID uuid.UUID, limit connector.RateLimit) error {
	if limit.RequestsPerMinute <= 0 && limit.DailyRequests <= 0 {
		return nil
	}

	minuteBucket, dayBucket := windowKeys(time.Now())
	minuteKey := fmt.Sprintf("%s%s:m:%s", l.keyPrefix, connectionID, minuteBucket)
	dayKey := fmt.Sprintf("%s%s:d:%s", l.keyPrefix, connectionID, dayBucket)

	pipe := l.client.TxPipeline()
	minuteCount := pipe.Incr(ctx, minuteKey)
	pipe.Expire(ctx, minuteKey, 2*time.Minute)
	dayCount := pipe.Incr(ctx, dayKey)
	pipe.Expire(ctx, dayKey, 26*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}

	if limit.RequestsPerMinute > 0 && minuteCount.Val() > int64(limit.RequestsPerMinute) {
		return shared.ErrRateLimitExceeded
	}
	if limit.DailyRequests > 0 && dayCount.Val() > int64(limit.DailyRequests) {
		return shared.ErrRateLimitExceeded
	}
	return nil
}

var _ Limiter = (*RedisLimiter)(nil)
