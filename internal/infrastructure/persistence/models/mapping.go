package models

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/mapping"
)

// DataMappingModel is the persistence model for the DataMapping aggregate.
type DataMappingModel struct {
	TenantAggregateModel
	ConnectionID     uuid.UUID              `gorm:"type:uuid;not null;index:idx_mapping_connection,priority:1"`
	Name             string                 `gorm:"type:varchar(255);not null"`
	SourceEntity     connector.EntityType   `gorm:"type:varchar(30);not null;index:idx_mapping_source_entity,priority:1"`
	TargetEntity     connector.EntityType   `gorm:"type:varchar(30);not null"`
	Direction        connector.Direction    `gorm:"type:varchar(20);not null"`
	FieldsJSON       string                 `gorm:"type:jsonb;column:fields"`
	KeyFields        pq.StringArray         `gorm:"type:text[];not null"`
	SourceFilterJSON string                 `gorm:"type:jsonb;column:source_filter"`
	TargetFilterJSON string                 `gorm:"type:jsonb;column:target_filter"`
	ConflictPolicy   mapping.ConflictPolicy `gorm:"type:varchar(20);not null;default:'manual'"`
	BatchSize        int                    `gorm:"not null;default:100"`
	IsActive         bool                   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (DataMappingModel) TableName() string {
	return "data_mappings"
}

// ToDomain converts the persistence model to a domain DataMapping aggregate.
func (m *DataMappingModel) ToDomain() *mapping.DataMapping {
	dm := &mapping.DataMapping{
		ConnectionID:   m.ConnectionID,
		Name:           m.Name,
		SourceEntity:   m.SourceEntity,
		TargetEntity:   m.TargetEntity,
		Direction:      m.Direction,
		Fields:         make([]mapping.FieldMapping, 0),
		KeyFields:      []string(m.KeyFields),
		ConflictPolicy: m.ConflictPolicy,
		BatchSize:      m.BatchSize,
		IsActive:       m.IsActive,
	}
	m.PopulateTenantAggregateRoot(&dm.TenantAggregateRoot)

	if m.FieldsJSON != "" {
		var fields []mapping.FieldMapping
		if err := json.Unmarshal([]byte(m.FieldsJSON), &fields); err == nil {
			dm.Fields = fields
		}
	}
	if m.SourceFilterJSON != "" {
		var filter map[string]any
		if err := json.Unmarshal([]byte(m.SourceFilterJSON), &filter); err == nil {
			dm.SourceFilter = filter
		}
	}
	if m.TargetFilterJSON != "" {
		var filter map[string]any
		if err := json.Unmarshal([]byte(m.TargetFilterJSON), &filter); err == nil {
			dm.TargetFilter = filter
		}
	}

	return dm
}

// FromDomain populates the persistence model from a domain DataMapping aggregate.
func (m *DataMappingModel) FromDomain(dm *mapping.DataMapping) {
	m.FromDomainTenantAggregateRoot(dm.TenantAggregateRoot)
	m.ConnectionID = dm.ConnectionID
	m.Name = dm.Name
	m.SourceEntity = dm.SourceEntity
	m.TargetEntity = dm.TargetEntity
	m.Direction = dm.Direction
	m.KeyFields = pq.StringArray(dm.KeyFields)
	m.ConflictPolicy = dm.ConflictPolicy
	m.BatchSize = dm.BatchSize
	m.IsActive = dm.IsActive

	if len(dm.Fields) > 0 {
		if jsonBytes, err := json.Marshal(dm.Fields); err == nil {
			m.FieldsJSON = string(jsonBytes)
		}
	} else {
		m.FieldsJSON = "[]"
	}
	m.SourceFilterJSON = marshalFilter(dm.SourceFilter)
	m.TargetFilterJSON = marshalFilter(dm.TargetFilter)
}

// marshalFilter serializes an optional filter map, empty maps as NULL-ish ""
func marshalFilter(filter map[string]any) string {
	if len(filter) == 0 {
		return ""
	}
	jsonBytes, err := json.Marshal(filter)
	if err != nil {
		return ""
	}
	return string(jsonBytes)
}

// DataMappingModelFromDomain creates a new persistence model from a domain DataMapping.
func DataMappingModelFromDomain(dm *mapping.DataMapping) *DataMappingModel {
	m := &DataMappingModel{}
	m.FromDomain(dm)
	return m
}
