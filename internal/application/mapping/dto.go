package mapping

import (
	"time"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/mapping"
)

// FieldMappingDTO is one field correspondence in requests and responses
type FieldMappingDTO struct {
	SourceField  string  `json:"source_field" binding:"required"`
	TargetField  string  `json:"target_field" binding:"required"`
	Transform    string  `json:"transform,omitempty"`
	DefaultValue *string `json:"default_value,omitempty"`
	Required     bool    `json:"required"`
}

// CreateMappingRequest represents a request to create a new data mapping
type CreateMappingRequest struct {
	ConnectionID   uuid.UUID         `json:"connection_id" binding:"required"`
	Name           string            `json:"name" binding:"required,min=1,max=200"`
	SourceEntity   string            `json:"source_entity" binding:"required"`
	TargetEntity   string            `json:"target_entity" binding:"required"`
	Direction      string            `json:"direction" binding:"required,oneof=inbound outbound bidirectional"`
	Fields         []FieldMappingDTO `json:"fields" binding:"required,min=1,dive"`
	KeyFields      []string          `json:"key_fields" binding:"required,min=1"`
	SourceFilter   map[string]any    `json:"source_filter,omitempty"`
	TargetFilter   map[string]any    `json:"target_filter,omitempty"`
	ConflictPolicy string            `json:"conflict_policy" binding:"omitempty,oneof=source_wins target_wins newest_wins oldest_wins manual"`
	BatchSize      *int              `json:"batch_size" binding:"omitempty,min=1,max=1000"`
}

// UpdateMappingRequest represents a request to update a data mapping
type UpdateMappingRequest struct {
	Name           *string           `json:"name" binding:"omitempty,min=1,max=200"`
	Fields         []FieldMappingDTO `json:"fields" binding:"omitempty,min=1,dive"`
	KeyFields      []string          `json:"key_fields" binding:"omitempty,min=1"`
	SourceFilter   map[string]any    `json:"source_filter,omitempty"`
	TargetFilter   map[string]any    `json:"target_filter,omitempty"`
	ConflictPolicy *string           `json:"conflict_policy" binding:"omitempty,oneof=source_wins target_wins newest_wins oldest_wins manual"`
	BatchSize      *int              `json:"batch_size" binding:"omitempty,min=1,max=1000"`
	IsActive       *bool             `json:"is_active"`
}

// PreviewMappingRequest carries a sample source record to map
type PreviewMappingRequest struct {
	Record map[string]any `json:"record" binding:"required"`
}

// PreviewMappingResponse is the mapped result of one sample record
type PreviewMappingResponse struct {
	Record          map[string]any `json:"record"`
	MissingRequired []string       `json:"missing_required,omitempty"`
	KeyValues       map[string]any `json:"key_values,omitempty"`
	Matchable       bool           `json:"matchable"`
}

// MappingResponse represents a data mapping in API responses
type MappingResponse struct {
	ID             uuid.UUID         `json:"id"`
	TenantID       uuid.UUID         `json:"tenant_id"`
	ConnectionID   uuid.UUID         `json:"connection_id"`
	Name           string            `json:"name"`
	SourceEntity   string            `json:"source_entity"`
	TargetEntity   string            `json:"target_entity"`
	Direction      string            `json:"direction"`
	Fields         []FieldMappingDTO `json:"fields"`
	KeyFields      []string          `json:"key_fields"`
	SourceFilter   map[string]any    `json:"source_filter,omitempty"`
	TargetFilter   map[string]any    `json:"target_filter,omitempty"`
	ConflictPolicy string            `json:"conflict_policy"`
	BatchSize      int               `json:"batch_size"`
	IsActive       bool              `json:"is_active"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Version        int               `json:"version"`
}

// MappingListFilter represents filter options for mapping list
type MappingListFilter struct {
	ConnectionID *uuid.UUID `form:"connection_id"`
	Direction    string     `form:"direction"`
	SourceEntity string     `form:"source_entity"`
	IsActive     *bool      `form:"is_active"`
	Page         int        `form:"page" binding:"omitempty,min=1"`
	PageSize     int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func toDomainFields(fields []FieldMappingDTO) []mapping.FieldMapping {
	out := make([]mapping.FieldMapping, len(fields))
	for i, f := range fields {
		out[i] = mapping.FieldMapping{
			SourceField:  f.SourceField,
			TargetField:  f.TargetField,
			Transform:    f.Transform,
			DefaultValue: f.DefaultValue,
			Required:     f.Required,
		}
	}
	return out
}

func toFieldDTOs(fields []mapping.FieldMapping) []FieldMappingDTO {
	out := make([]FieldMappingDTO, len(fields))
	for i, f := range fields {
		out[i] = FieldMappingDTO{
			SourceField:  f.SourceField,
			TargetField:  f.TargetField,
			Transform:    f.Transform,
			DefaultValue: f.DefaultValue,
			Required:     f.Required,
		}
	}
	return out
}

// ToMappingResponse maps a mapping aggregate to its API shape
func ToMappingResponse(m *mapping.DataMapping) MappingResponse {
	return MappingResponse{
		ID:             m.ID,
		TenantID:       m.TenantID,
		ConnectionID:   m.ConnectionID,
		Name:           m.Name,
		SourceEntity:   string(m.SourceEntity),
		TargetEntity:   string(m.TargetEntity),
		Direction:      string(m.Direction),
		Fields:         toFieldDTOs(m.Fields),
		KeyFields:      m.KeyFields,
		SourceFilter:   m.SourceFilter,
		TargetFilter:   m.TargetFilter,
		ConflictPolicy: string(m.ConflictPolicy),
		BatchSize:      m.BatchSize,
		IsActive:       m.IsActive,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		Version:        m.Version,
	}
}

// ToMappingResponses maps a slice of mappings
func ToMappingResponses(mappings []*mapping.DataMapping) []MappingResponse {
	out := make([]MappingResponse, len(mappings))
	for i, m := range mappings {
		out[i] = ToMappingResponse(m)
	}
	return out
}
