package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/shared"
)

func TestMemoryLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	connID := uuid.New()

	t.Run("allows requests within the per-minute budget", func(t *testing.T) {
		l := NewMemoryLimiter()
		limit := connector.RateLimit{RequestsPerMinute: 3}

		for i := 0; i < 3; i++ {
			require.NoError(t, l.Allow(ctx, connID, limit))
		}
		assert.ErrorIs(t, l.Allow(ctx, connID, limit), shared.ErrRateLimitExceeded)
	})

	t.Run("minute window resets on the next bucket", func(t *testing.T) {
		l := NewMemoryLimiter()
		now := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)
		l.now = func() time.Time { return now }
		limit := connector.RateLimit{RequestsPerMinute: 1}

		require.NoError(t, l.Allow(ctx, connID, limit))
		assert.ErrorIs(t, l.Allow(ctx, connID, limit), shared.ErrRateLimitExceeded)

		now = now.Add(time.Minute)
		assert.NoError(t, l.Allow(ctx, connID, limit))
	})

	t.Run("daily budget persists across minute windows", func(t *testing.T) {
		l := NewMemoryLimiter()
		now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		l.now = func() time.Time { return now }
		limit := connector.RateLimit{RequestsPerMinute: 10, DailyRequests: 2}

		require.NoError(t, l.Allow(ctx, connID, limit))
		require.NoError(t, l.Allow(ctx, connID, limit))

		now = now.Add(5 * time.Minute)
		assert.ErrorIs(t, l.Allow(ctx, connID, limit), shared.ErrRateLimitExceeded)

		now = now.Add(24 * time.Hour)
		assert.NoError(t, l.Allow(ctx, connID, limit))
	})

	t.Run("connections are counted independently", func(t *testing.T) {
		l := NewMemoryLimiter()
		limit := connector.RateLimit{RequestsPerMinute: 1}

		require.NoError(t, l.Allow(ctx, connID, limit))
		assert.NoError(t, l.Allow(ctx, uuid.New(), limit))
	})

	t.Run("zero budgets mean unlimited", func(t *testing.T) {
		l := NewMemoryLimiter()
		for i := 0; i < 100; i++ {
			require.NoError(t, l.Allow(ctx, connID, connector.RateLimit{}))
		}
	})
}
