package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/synchub/backend/internal/domain/conflict"
	"github.com/synchub/backend/internal/domain/connector"
)

// ConflictModel is the persistence model for the Conflict aggregate.
type ConflictModel struct {
	TenantAggregateModel
	ExecutionID        uuid.UUID                   `gorm:"type:uuid;not null;index:idx_conflict_execution,priority:1"`
	MappingID          uuid.UUID                   `gorm:"type:uuid;not null;index:idx_conflict_mapping,priority:1"`
	ConnectionID       uuid.UUID                   `gorm:"type:uuid;not null"`
	Entity             connector.EntityType        `gorm:"type:varchar(30);not null"`
	SourceRecordID     string                      `gorm:"type:varchar(100);not null"`
	TargetRecordID     string                      `gorm:"type:varchar(100);not null"`
	SourceSnapshotJSON string                      `gorm:"type:jsonb;column:source_snapshot"`
	TargetSnapshotJSON string                      `gorm:"type:jsonb;column:target_snapshot"`
	SourceModifiedAt   time.Time                   `gorm:"not null"`
	TargetModifiedAt   time.Time                   `gorm:"not null"`
	ConflictingFields  pq.StringArray              `gorm:"type:text[];not null"`
	IsResolved         bool                        `gorm:"not null;default:false;index:idx_conflict_open,priority:1"`
	IsIgnored          bool                        `gorm:"not null;default:false"`
	ResolvedDataJSON   string                      `gorm:"type:jsonb;column:resolved_data"`
	ResolutionStrategy conflict.ResolutionStrategy `gorm:"type:varchar(20)"`
	ResolutionNotes    string                      `gorm:"type:text"`
	ResolvedBy         string                      `gorm:"type:varchar(100)"`
	ResolvedAt         *time.Time
}

// TableName returns the table name for GORM
func (ConflictModel) TableName() string {
	return "sync_conflicts"
}

// ToDomain converts the persistence model to a domain Conflict aggregate.
func (m *ConflictModel) ToDomain() *conflict.Conflict {
	c := &conflict.Conflict{
		ExecutionID:        m.ExecutionID,
		MappingID:          m.MappingID,
		ConnectionID:       m.ConnectionID,
		Entity:             m.Entity,
		SourceRecordID:     m.SourceRecordID,
		TargetRecordID:     m.TargetRecordID,
		SourceModifiedAt:   m.SourceModifiedAt,
		TargetModifiedAt:   m.TargetModifiedAt,
		ConflictingFields:  []string(m.ConflictingFields),
		IsResolved:         m.IsResolved,
		IsIgnored:          m.IsIgnored,
		ResolutionStrategy: m.ResolutionStrategy,
		ResolutionNotes:    m.ResolutionNotes,
		ResolvedBy:         m.ResolvedBy,
		ResolvedAt:         m.ResolvedAt,
	}
	m.PopulateTenantAggregateRoot(&c.TenantAggregateRoot)

	c.SourceSnapshot = unmarshalSnapshot(m.SourceSnapshotJSON)
	c.TargetSnapshot = unmarshalSnapshot(m.TargetSnapshotJSON)
	c.ResolvedData = unmarshalSnapshot(m.ResolvedDataJSON)

	return c
}

// FromDomain populates the persistence model from a domain Conflict aggregate.
func (m *ConflictModel) FromDomain(c *conflict.Conflict) {
	m.FromDomainTenantAggregateRoot(c.TenantAggregateRoot)
	m.ExecutionID = c.ExecutionID
	m.MappingID = c.MappingID
	m.ConnectionID = c.ConnectionID
	m.Entity = c.Entity
	m.SourceRecordID = c.SourceRecordID
	m.TargetRecordID = c.TargetRecordID
	m.SourceModifiedAt = c.SourceModifiedAt
	m.TargetModifiedAt = c.TargetModifiedAt
	m.ConflictingFields = pq.StringArray(c.ConflictingFields)
	m.IsResolved = c.IsResolved
	m.IsIgnored = c.IsIgnored
	m.ResolutionStrategy = c.ResolutionStrategy
	m.ResolutionNotes = c.ResolutionNotes
	m.ResolvedBy = c.ResolvedBy
	m.ResolvedAt = c.ResolvedAt

	m.SourceSnapshotJSON = marshalSnapshot(c.SourceSnapshot)
	m.TargetSnapshotJSON = marshalSnapshot(c.TargetSnapshot)
	m.ResolvedDataJSON = marshalSnapshot(c.ResolvedData)
}

func marshalSnapshot(snapshot map[string]any) string {
	if len(snapshot) == 0 {
		return ""
	}
	jsonBytes, err := json.Marshal(snapshot)
	if err != nil {
		return ""
	}
	return string(jsonBytes)
}

func unmarshalSnapshot(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var snapshot map[string]any
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil
	}
	return snapshot
}

// ConflictModelFromDomain creates a new persistence model from a domain Conflict.
func ConflictModelFromDomain(c *conflict.Conflict) *ConflictModel {
	m := &ConflictModel{}
	m.FromDomain(c)
	return m
}
