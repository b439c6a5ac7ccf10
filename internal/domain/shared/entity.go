package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is implemented by every domain object with identity and
// audit timestamps.
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity supplies identity and timestamps for embedding.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity mints an entity with a fresh ID and matching
// created/updated timestamps.
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (e *BaseEntity) GetID() uuid.UUID { return e.ID }

func (e *BaseEntity) GetCreatedAt() time.Time { return e.CreatedAt }

func (e *BaseEntity) GetUpdatedAt() time.Time { return e.UpdatedAt }

// Touch bumps UpdatedAt. State transitions call this so the timestamp
// reflects the transition even before the aggregate is persisted.
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}