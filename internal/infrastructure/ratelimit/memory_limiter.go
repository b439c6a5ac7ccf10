package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/shared"
)

type counterWindow struct {
	bucket string
	count  int
}

type connectionCounters struct {
	minute counterWindow
	day    counterWindow
}

// MemoryLimiter is a single-process fallback used when Redis is not
// configured. Budgets are enforced per instance, so a multi-node
// deployment should prefer the Redis limiter.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[uuid.UUID]*connectionCounters
	now      func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		counters: make(map[uuid.UUID]*connectionCounters),
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, connectionID uuid.UUID, limit connector.RateLimit) error {
	if limit.RequestsPerMinute <= 0 && limit.DailyRequests <= 0 {
		return nil
	}

	minuteBucket, dayBucket := windowKeys(l.now())

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[connectionID]
	if !ok {
		c = &connectionCounters{}
		l.counters[connectionID] = c
	}
	if c.minute.bucket != minuteBucket {
		c.minute = counterWindow{bucket: minuteBucket}
	}
	if c.day.bucket != dayBucket {
		c.day = counterWindow{bucket: dayBucket}
	}

	if limit.RequestsPerMinute > 0 && c.minute.count >= limit.RequestsPerMinute {
		return shared.ErrRateLimitExceeded
	}
	if limit.DailyRequests > 0 && c.day.count >= limit.DailyRequests {
		return shared.ErrRateLimitExceeded
	}

	c.minute.count++
	c.day.count++
	return nil
}

var _ Limiter = (*MemoryLimiter)(nil)
