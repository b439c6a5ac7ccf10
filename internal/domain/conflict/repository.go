package conflict

import (
	"context"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/connector"
)

// Filter carries the optional criteria for conflict queries
type Filter struct {
	ExecutionID  *uuid.UUID
	MappingID    *uuid.UUID
	ConnectionID *uuid.UUID
	Entity       *connector.EntityType
	IsResolved   *bool
	IsIgnored    *bool
	Page         int
	PageSize     int
}

// Repository persists detected conflicts
type Repository interface {
	// FindByID retrieves a conflict by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Conflict, error)

	// FindAll retrieves conflicts matching the filter, newest first
	FindAll(ctx context.Context, tenantID uuid.UUID, filter Filter) ([]*Conflict, error)

	// Count returns the number of conflicts matching the filter
	Count(ctx context.Context, tenantID uuid.UUID, filter Filter) (int64, error)

	// CountUnresolvedByMapping returns the open conflict count per mapping
	// for triage views
	CountUnresolvedByMapping(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]int64, error)

	// Save persists a conflict (create or update with optimistic locking)
	Save(ctx context.Context, c *Conflict) error
}
