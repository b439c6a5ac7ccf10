package connector

import "errors"

// Catalog errors
var (
	// ErrUnknownConnectorType indicates the connector type is not in the catalog
	ErrUnknownConnectorType = errors.New("connector: unknown connector type")
	// ErrConnectorNotRegistered indicates no runtime adapter is registered for the type
	ErrConnectorNotRegistered = errors.New("connector: no adapter registered for type")
	// ErrConnectorAlreadyRegistered indicates a duplicate registration
	ErrConnectorAlreadyRegistered = errors.New("connector: adapter already registered for type")
	// ErrEntityNotSupported indicates the entity type is outside the connector's capability set
	ErrEntityNotSupported = errors.New("connector: entity type not supported")
	// ErrDirectionNotSupported indicates the sync direction is outside the connector's capability set
	ErrDirectionNotSupported = errors.New("connector: sync direction not supported")
	// ErrInvalidDefinition indicates a malformed catalog entry
	ErrInvalidDefinition = errors.New("connector: invalid connector definition")
)

// Runtime errors reported by adapters. The execution engine classifies
// adapter failures with errors.Is against these sentinels.
var (
	// ErrProbeFailed indicates the health probe could not reach or authenticate with the remote system
	ErrProbeFailed = errors.New("connector: probe failed")
	// ErrFetchFailed indicates a read from the remote system failed
	ErrFetchFailed = errors.New("connector: fetch failed")
	// ErrWriteFailed indicates a write to the remote system failed
	ErrWriteFailed = errors.New("connector: write failed")
	// ErrRateLimited indicates the remote system reported throttling
	ErrRateLimited = errors.New("connector: rate limited by remote system")
	// ErrAuthExpired indicates the credential or token is no longer accepted
	ErrAuthExpired = errors.New("connector: authentication expired")
)
