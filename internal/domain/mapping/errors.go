package mapping

import "errors"

// Validation errors
var (
	// ErrNameRequired indicates an empty mapping name
	ErrNameRequired = errors.New("mapping: name is required")
	// ErrNoFields indicates a mapping without field correspondences
	ErrNoFields = errors.New("mapping: at least one field mapping is required")
	// ErrFieldIncomplete indicates a field mapping missing source or target
	ErrFieldIncomplete = errors.New("mapping: field mapping requires source and target fields")
	// ErrDuplicateTargetField indicates two field mappings writing the same target
	ErrDuplicateTargetField = errors.New("mapping: duplicate target field")
	// ErrUnknownTransform indicates a transform name not present in the registry
	ErrUnknownTransform = errors.New("mapping: unknown transform")
	// ErrNoKeyFields indicates a mapping without key fields for record matching
	ErrNoKeyFields = errors.New("mapping: at least one key field is required")
	// ErrKeyFieldNotMapped indicates a key field that is not a mapped target field
	ErrKeyFieldNotMapped = errors.New("mapping: key field is not a mapped target field")
	// ErrInvalidBatchSize indicates a batch size outside 1..1000
	ErrInvalidBatchSize = errors.New("mapping: batch size must be between 1 and 1000")
	// ErrInvalidConflictPolicy indicates an unknown conflict resolution policy
	ErrInvalidConflictPolicy = errors.New("mapping: invalid conflict policy")
)

// State errors
var (
	// ErrMappingNotFound indicates the mapping does not exist
	ErrMappingNotFound = errors.New("mapping: not found")
	// ErrMappingInactive indicates an operation on a deactivated mapping
	ErrMappingInactive = errors.New("mapping: mapping is deactivated")
)

// Transform runtime errors
var (
	// ErrTransformFailed indicates a transform could not convert the value
	ErrTransformFailed = errors.New("mapping: transform failed")
)
