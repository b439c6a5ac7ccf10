package connection

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/connector"
)

// Filter carries the optional criteria for connection queries
type Filter struct {
	ConnectorType *connector.Type
	Status        *Status
	HealthStatus  *HealthStatus
	IsActive      *bool
	Search        string
	Page          int
	PageSize      int
}

// Reader provides read access to connections
type Reader interface {
	// FindByID retrieves a connection by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Connection, error)

	// FindByCode retrieves a connection by its unique code within a tenant
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Connection, error)
}

// Finder provides query access to connections
type Finder interface {
	// FindAll retrieves connections matching the filter
	FindAll(ctx context.Context, tenantID uuid.UUID, filter Filter) ([]*Connection, error)

	// Count returns the number of connections matching the filter
	Count(ctx context.Context, tenantID uuid.UUID, filter Filter) (int64, error)

	// FindRateLimitedBefore returns rate-limited connections whose backoff
	// deadline is at or before the given instant, across all tenants.
	// The scheduler sweep uses it to recover connections.
	FindRateLimitedBefore(ctx context.Context, now time.Time) ([]*Connection, error)
}

// Writer provides write access to connections
type Writer interface {
	// Save persists a connection (create or update with optimistic locking)
	Save(ctx context.Context, conn *Connection) error

	// RecordOutcome folds one execution outcome into the connection's
	// rolling counters with a single atomic statement: success resets
	// consecutive_errors, failure increments it; the 24h success window
	// and the average response time are updated server-side so concurrent
	// executions against the same connection never lose updates.
	RecordOutcome(ctx context.Context, id uuid.UUID, success bool, latencyMs int64) error
}

// Repository combines all connection persistence operations
type Repository interface {
	Reader
	Finder
	Writer
}

// SecretStore is the credential storage port. Implementations encrypt at
// rest; the engine only ever holds the opaque reference and resolves the
// secret just-in-time for a connector call. Raw values are never logged.
type SecretStore interface {
	// Put stores a credential payload under a new reference
	Put(ctx context.Context, tenantID uuid.UUID, secret map[string]string) (uuid.UUID, error)

	// Get resolves a credential payload by reference
	Get(ctx context.Context, tenantID, ref uuid.UUID) (map[string]string, error)

	// Delete removes a credential payload
	Delete(ctx context.Context, tenantID, ref uuid.UUID) error
}
