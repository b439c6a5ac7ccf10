package connection

import "errors"

// Validation errors
var (
	// ErrCodeRequired indicates an empty connection code
	ErrCodeRequired = errors.New("connection: code is required")
	// ErrNameRequired indicates an empty connection name
	ErrNameRequired = errors.New("connection: name is required")
	// ErrBaseURLRequired indicates an empty base URL
	ErrBaseURLRequired = errors.New("connection: base URL is required")
	// ErrMissingCredentialField indicates a required credential field was not provided
	ErrMissingCredentialField = errors.New("connection: required credential field missing")
	// ErrInvalidAuthType indicates the auth type does not match the connector definition
	ErrInvalidAuthType = errors.New("connection: auth type not accepted by connector")
)

// State errors
var (
	// ErrConnectionNotFound indicates the connection does not exist
	ErrConnectionNotFound = errors.New("connection: not found")
	// ErrConnectionExists indicates a connection with the same code already exists
	ErrConnectionExists = errors.New("connection: code already in use")
	// ErrInvalidStatusTransition indicates the requested lifecycle transition is not allowed
	ErrInvalidStatusTransition = errors.New("connection: invalid status transition")
	// ErrConnectionInactive indicates an operation on a deactivated connection
	ErrConnectionInactive = errors.New("connection: connection is deactivated")
	// ErrConnectionInMaintenance indicates triggers are blocked by the maintenance override
	ErrConnectionInMaintenance = errors.New("connection: connection is in maintenance")
	// ErrReauthorizationRequired indicates the credential expired and must be replaced
	ErrReauthorizationRequired = errors.New("connection: reauthorization required")
)
