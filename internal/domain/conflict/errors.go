package conflict

import "errors"

// Validation errors
var (
	// ErrNoConflictingFields indicates a conflict record without field names
	ErrNoConflictingFields = errors.New("conflict: at least one conflicting field is required")
	// ErrMergeDataRequired indicates a merge resolution without the merged payload
	ErrMergeDataRequired = errors.New("conflict: merge resolution requires resolved data")
	// ErrUnknownStrategy indicates an unrecognized resolution strategy
	ErrUnknownStrategy = errors.New("conflict: unknown resolution strategy")
)

// State errors
var (
	// ErrConflictNotFound indicates the conflict does not exist
	ErrConflictNotFound = errors.New("conflict: not found")
	// ErrConflictAlreadyResolved indicates a resolution against a settled conflict
	ErrConflictAlreadyResolved = errors.New("conflict: already resolved")
)
