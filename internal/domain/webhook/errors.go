package webhook

import "errors"

// Validation errors
var (
	// ErrNameRequired indicates an empty webhook name
	ErrNameRequired = errors.New("webhook: name is required")
	// ErrInvalidDirection indicates an unknown webhook direction
	ErrInvalidDirection = errors.New("webhook: invalid direction")
	// ErrNoEvents indicates a webhook without subscribed events
	ErrNoEvents = errors.New("webhook: at least one subscribed event is required")
	// ErrTargetURLRequired indicates an outbound webhook without a target URL
	ErrTargetURLRequired = errors.New("webhook: target URL is required for outbound webhooks")
	// ErrInvalidAuthType indicates an unknown outbound auth type
	ErrInvalidAuthType = errors.New("webhook: invalid auth type")
	// ErrInvalidSignatureAlgorithm indicates an unsupported signature algorithm
	ErrInvalidSignatureAlgorithm = errors.New("webhook: invalid signature algorithm")
	// ErrInvalidRetryPolicy indicates a negative retry count/delay or zero timeout
	ErrInvalidRetryPolicy = errors.New("webhook: invalid retry policy")
)

// State and ingestion errors
var (
	// ErrWebhookNotFound indicates the webhook does not exist
	ErrWebhookNotFound = errors.New("webhook: not found")
	// ErrWebhookInactive indicates a call against a deactivated webhook
	ErrWebhookInactive = errors.New("webhook: webhook is deactivated")
	// ErrNotInbound indicates an ingestion call against an outbound webhook
	ErrNotInbound = errors.New("webhook: not an inbound webhook")
	// ErrSignatureMismatch indicates an inbound request whose signature failed validation
	ErrSignatureMismatch = errors.New("webhook: signature validation failed")
	// ErrDuplicateEvent indicates an inbound event id seen before within the dedup window
	ErrDuplicateEvent = errors.New("webhook: duplicate event")
)
