// Package mapping owns the field-level correspondence between one external
// entity and one internal entity for a given connection: which fields map
// where, how records are matched, and what happens when both sides changed.
package mapping

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/domain/shared"
)

// ConflictPolicy decides how the engine reacts when both sides of an
// integration changed the same record since the last successful sync
type ConflictPolicy string

// Conflict resolution policies
const (
	// PolicySourceWins applies the source snapshot automatically
	PolicySourceWins ConflictPolicy = "source_wins"
	// PolicyTargetWins keeps the target snapshot automatically
	PolicyTargetWins ConflictPolicy = "target_wins"
	// PolicyNewestWins applies whichever side was modified last
	PolicyNewestWins ConflictPolicy = "newest_wins"
	// PolicyOldestWins applies whichever side was modified first
	PolicyOldestWins ConflictPolicy = "oldest_wins"
	// PolicyManual records the conflict for operator triage; nothing is written
	PolicyManual ConflictPolicy = "manual"
)

// IsValid checks if the conflict policy is valid
func (p ConflictPolicy) IsValid() bool {
	switch p {
	case PolicySourceWins, PolicyTargetWins, PolicyNewestWins, PolicyOldestWins, PolicyManual:
		return true
	}
	return false
}

// String returns the string representation
func (p ConflictPolicy) String() string {
	return string(p)
}

// FieldMapping is one source-to-target field correspondence.
// Transform, when set, names a registered opaque transform applied to the
// source value before writing.
type FieldMapping struct {
	SourceField  string  `json:"source_field"`
	TargetField  string  `json:"target_field"`
	Transform    string  `json:"transform,omitempty"`
	DefaultValue *string `json:"default_value,omitempty"`
	Required     bool    `json:"required"`
}

// Validate checks the field mapping for completeness
func (f *FieldMapping) Validate() error {
	if f.SourceField == "" || f.TargetField == "" {
		return ErrFieldIncomplete
	}
	if f.Transform != "" && !TransformRegistered(f.Transform) {
		return fmt.Errorf("%w: %s", ErrUnknownTransform, f.Transform)
	}
	return nil
}

// defaultBatchSize is used when a mapping does not set one
const defaultBatchSize = 100

// maxBatchSize bounds one fetch/write page
const maxBatchSize = 1000

// DataMapping is the tenant-scoped aggregate describing how records of one
// entity move across one connection
type DataMapping struct {
	shared.TenantAggregateRoot
	ConnectionID uuid.UUID
	Name         string
	SourceEntity connector.EntityType
	TargetEntity connector.EntityType
	Direction    connector.Direction
	Fields       []FieldMapping
	// KeyFields name mapped TARGET fields used to match existing records
	KeyFields []string
	// SourceFilter narrows the fetch on the source side (connector-specific)
	SourceFilter map[string]any
	// TargetFilter narrows the candidate set on the target side
	TargetFilter   map[string]any
	ConflictPolicy ConflictPolicy
	BatchSize      int
	IsActive       bool
}

// NewDataMapping creates an active mapping after validating its shape
func NewDataMapping(tenantID, connectionID uuid.UUID, name string, sourceEntity, targetEntity connector.EntityType, direction connector.Direction, fields []FieldMapping, keyFields []string) (*DataMapping, error) {
	m := &DataMapping{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ConnectionID:        connectionID,
		Name:                name,
		SourceEntity:        sourceEntity,
		TargetEntity:        targetEntity,
		Direction:           direction,
		Fields:              fields,
		KeyFields:           keyFields,
		ConflictPolicy:      PolicyManual,
		BatchSize:           defaultBatchSize,
		IsActive:            true,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the whole mapping for consistency
func (m *DataMapping) Validate() error {
	if m.Name == "" {
		return ErrNameRequired
	}
	if len(m.Fields) == 0 {
		return ErrNoFields
	}
	targets := make(map[string]bool, len(m.Fields))
	for i := range m.Fields {
		if err := m.Fields[i].Validate(); err != nil {
			return err
		}
		if targets[m.Fields[i].TargetField] {
			return fmt.Errorf("%w: %s", ErrDuplicateTargetField, m.Fields[i].TargetField)
		}
		targets[m.Fields[i].TargetField] = true
	}
	if len(m.KeyFields) == 0 {
		return ErrNoKeyFields
	}
	for _, k := range m.KeyFields {
		if !targets[k] {
			return fmt.Errorf("%w: %s", ErrKeyFieldNotMapped, k)
		}
	}
	if m.BatchSize < 1 || m.BatchSize > maxBatchSize {
		return ErrInvalidBatchSize
	}
	if !m.ConflictPolicy.IsValid() {
		return ErrInvalidConflictPolicy
	}
	return nil
}

// UpdateFields replaces the field list, revalidating key coverage
func (m *DataMapping) UpdateFields(fields []FieldMapping) error {
	prev := m.Fields
	m.Fields = fields
	if err := m.Validate(); err != nil {
		m.Fields = prev
		return err
	}
	m.IncrementVersion()
	m.Touch()
	return nil
}

// SetKeyFields replaces the key field list
func (m *DataMapping) SetKeyFields(keys []string) error {
	prev := m.KeyFields
	m.KeyFields = keys
	if err := m.Validate(); err != nil {
		m.KeyFields = prev
		return err
	}
	m.Touch()
	return nil
}

// SetFilters replaces the side filters
func (m *DataMapping) SetFilters(source, target map[string]any) {
	m.SourceFilter = source
	m.TargetFilter = target
	m.Touch()
}

// SetConflictPolicy changes how detected conflicts are handled
func (m *DataMapping) SetConflictPolicy(p ConflictPolicy) error {
	if !p.IsValid() {
		return ErrInvalidConflictPolicy
	}
	m.ConflictPolicy = p
	m.Touch()
	return nil
}

// SetBatchSize changes the per-page record count
func (m *DataMapping) SetBatchSize(size int) error {
	if size < 1 || size > maxBatchSize {
		return ErrInvalidBatchSize
	}
	m.BatchSize = size
	m.Touch()
	return nil
}

// Activate enables the mapping for execution
func (m *DataMapping) Activate() {
	m.IsActive = true
	m.Touch()
}

// Deactivate disables the mapping without deleting it
func (m *DataMapping) Deactivate() {
	m.IsActive = false
	m.Touch()
}

// MappedTargetFields returns the target field names in mapping order
func (m *DataMapping) MappedTargetFields() []string {
	out := make([]string, len(m.Fields))
	for i := range m.Fields {
		out[i] = m.Fields[i].TargetField
	}
	return out
}

// ApplyResult is the outcome of mapping one source record
type ApplyResult struct {
	// Record is the mapped target-shaped record
	Record map[string]any
	// MissingRequired lists required source fields absent from the input.
	// A non-empty list fails the record, not the run.
	MissingRequired []string
}

// Failed reports whether the record must be counted as failed
func (r *ApplyResult) Failed() bool {
	return len(r.MissingRequired) > 0
}

// ApplyToRecord maps one raw source record into target shape: transforms,
// defaults and required-field checks. Transform errors on a field count the
// source field as missing when required, otherwise the field is dropped.
func (m *DataMapping) ApplyToRecord(src map[string]any) (*ApplyResult, error) {
	res := &ApplyResult{Record: make(map[string]any, len(m.Fields))}

	for i := range m.Fields {
		fm := &m.Fields[i]

		v, present := src[fm.SourceField]
		if !present || v == nil {
			if fm.DefaultValue != nil {
				res.Record[fm.TargetField] = *fm.DefaultValue
				continue
			}
			if fm.Required {
				res.MissingRequired = append(res.MissingRequired, fm.SourceField)
			}
			continue
		}

		if fm.Transform != "" {
			transformed, err := ApplyTransform(fm.Transform, v)
			if err != nil {
				if fm.Required {
					res.MissingRequired = append(res.MissingRequired, fm.SourceField)
					continue
				}
				continue
			}
			v = transformed
		}
		res.Record[fm.TargetField] = v
	}

	return res, nil
}

// KeyValues extracts the key field values from a mapped record.
// ok is false when any key value is absent, in which case the record cannot
// be matched and must be counted as failed.
func (m *DataMapping) KeyValues(mapped map[string]any) (map[string]any, bool) {
	keys := make(map[string]any, len(m.KeyFields))
	for _, k := range m.KeyFields {
		v, present := mapped[k]
		if !present || v == nil {
			return nil, false
		}
		keys[k] = v
	}
	return keys, true
}
