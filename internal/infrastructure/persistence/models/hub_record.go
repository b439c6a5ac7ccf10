package models

import (
	"time"

	"github.com/google/uuid"
)

// HubRecordModel is the persistence model for hub-side entity records: the
// internal copy of every record the engine syncs with external systems.
// One row per (tenant, entity, external_id).
type HubRecordModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_hub_record_identity,priority:1"`
	Entity     string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_hub_record_identity,priority:2"`
	ExternalID string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_hub_record_identity,priority:3"`
	Data       string    `gorm:"type:jsonb;not null;default:'{}'"`
	ModifiedAt time.Time `gorm:"not null;index:idx_hub_record_modified"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for hub records
func (HubRecordModel) TableName() string {
	return "hub_records"
}
