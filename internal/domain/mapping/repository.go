package mapping

import (
	"context"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/connector"
)

// Filter carries the optional criteria for mapping queries
type Filter struct {
	ConnectionID *uuid.UUID
	Direction    *connector.Direction
	SourceEntity *connector.EntityType
	IsActive     *bool
	Page         int
	PageSize     int
}

// Reader provides read access to mappings
type Reader interface {
	// FindByID retrieves a mapping by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*DataMapping, error)
}

// Finder provides query access to mappings
type Finder interface {
	// FindAll retrieves mappings matching the filter
	FindAll(ctx context.Context, tenantID uuid.UUID, filter Filter) ([]*DataMapping, error)

	// Count returns the number of mappings matching the filter
	Count(ctx context.Context, tenantID uuid.UUID, filter Filter) (int64, error)

	// FindByConnectionEntity finds the active mappings for one connection
	// and source entity; inbound webhook ingestion resolves its target
	// mapping through this.
	FindByConnectionEntity(ctx context.Context, tenantID, connectionID uuid.UUID, entity connector.EntityType) ([]*DataMapping, error)
}

// Writer provides write access to mappings
type Writer interface {
	// Save persists a mapping (create or update with optimistic locking)
	Save(ctx context.Context, m *DataMapping) error

	// Delete removes a mapping
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// Repository combines all mapping persistence operations
type Repository interface {
	Reader
	Finder
	Writer
}
