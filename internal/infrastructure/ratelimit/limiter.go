package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/connector"
)

// Limiter gates outbound requests to an external system against the
// per-connection budgets declared by the connector definition. Allow
// consumes one permit; when either the per-minute or the daily budget
// is exhausted it returns shared.ErrRateLimitExceeded without
// consuming anything beyond the rejected attempt.
type Limiter interface {
	Allow(ctx context.Context, connectionID uuid.UUID, limit connector.RateLimit) error
}

// windowKeys returns the minute and day bucket suffixes for now.
// Buckets are fixed windows; a request at second 59 and another at
// second 61 land in different minute buckets.
func windowKeys(now time.Time) (minute string, day string) {
	utc := now.UTC()
	return utc.Format("200601021504"), utc.Format("20060102")
}
