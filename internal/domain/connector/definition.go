// Package connector defines the static catalog of connector types and the
// runtime port every concrete connector adapter implements. The catalog is
// immutable after startup; connections reference it for capability and
// credential-field checks.
package connector

import "fmt"

// Type identifies a kind of external system the hub can talk to
type Type string

// Supported connector types
const (
	TypeOdoo       Type = "odoo"
	TypeStripe     Type = "stripe"
	TypeHubSpot    Type = "hubspot"
	TypeShopify    Type = "shopify"
	TypeQuickBooks Type = "quickbooks"
	TypeCustom     Type = "custom"
)

// IsValid checks if the connector type is valid
func (t Type) IsValid() bool {
	switch t {
	case TypeOdoo, TypeStripe, TypeHubSpot, TypeShopify, TypeQuickBooks, TypeCustom:
		return true
	}
	return false
}

// String returns the string representation
func (t Type) String() string {
	return string(t)
}

// AuthType identifies how a connection authenticates with the remote system
type AuthType string

// Supported authentication methods
const (
	AuthAPIKey AuthType = "api_key"
	AuthOAuth2 AuthType = "oauth2"
	AuthBasic  AuthType = "basic"
	AuthToken  AuthType = "token"
)

// IsValid checks if the auth type is valid
func (a AuthType) IsValid() bool {
	switch a {
	case AuthAPIKey, AuthOAuth2, AuthBasic, AuthToken:
		return true
	}
	return false
}

// EntityType identifies a category of business record the hub syncs
type EntityType string

// Supported entity types
const (
	EntityContact EntityType = "contact"
	EntityProduct EntityType = "product"
	EntityOrder   EntityType = "order"
	EntityInvoice EntityType = "invoice"
	EntityPayment EntityType = "payment"
	EntityCustom  EntityType = "custom"
)

// IsValid checks if the entity type is valid
func (e EntityType) IsValid() bool {
	switch e {
	case EntityContact, EntityProduct, EntityOrder, EntityInvoice, EntityPayment, EntityCustom:
		return true
	}
	return false
}

// String returns the string representation
func (e EntityType) String() string {
	return string(e)
}

// Direction identifies which way records flow.
// Inbound means external system -> hub, outbound means hub -> external system.
type Direction string

// Supported sync directions
const (
	DirectionInbound       Direction = "inbound"
	DirectionOutbound      Direction = "outbound"
	DirectionBidirectional Direction = "bidirectional"
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	switch d {
	case DirectionInbound, DirectionOutbound, DirectionBidirectional:
		return true
	}
	return false
}

// String returns the string representation
func (d Direction) String() string {
	return string(d)
}

// RateLimit declares the request budget a connector type grants
type RateLimit struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	DailyRequests     int `json:"daily_requests"`
}

// Definition is an immutable catalog entry describing one connector type.
// Entries are created at startup and never mutated at runtime.
type Definition struct {
	Type                     Type         `json:"type"`
	Name                     string       `json:"name"`
	AuthType                 AuthType     `json:"auth_type"`
	SupportedEntities        []EntityType `json:"supported_entities"`
	SupportedDirections      []Direction  `json:"supported_directions"`
	RateLimit                RateLimit    `json:"rate_limit"`
	SupportsWebhooks         bool         `json:"supports_webhooks"`
	RequiredCredentialFields []string     `json:"required_credential_fields"`
	// TimeoutSeconds is the default wall-clock budget for one sync run
	// against this connector type. Sync configurations may override it.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// Validate checks the definition for completeness
func (d *Definition) Validate() error {
	if !d.Type.IsValid() {
		return fmt.Errorf("%w: type %q", ErrInvalidDefinition, d.Type)
	}
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if !d.AuthType.IsValid() {
		return fmt.Errorf("%w: auth type %q", ErrInvalidDefinition, d.AuthType)
	}
	if len(d.SupportedEntities) == 0 {
		return fmt.Errorf("%w: at least one supported entity is required", ErrInvalidDefinition)
	}
	for _, e := range d.SupportedEntities {
		if !e.IsValid() {
			return fmt.Errorf("%w: entity %q", ErrInvalidDefinition, e)
		}
	}
	if len(d.SupportedDirections) == 0 {
		return fmt.Errorf("%w: at least one supported direction is required", ErrInvalidDefinition)
	}
	for _, dir := range d.SupportedDirections {
		if !dir.IsValid() {
			return fmt.Errorf("%w: direction %q", ErrInvalidDefinition, dir)
		}
	}
	if d.RateLimit.RequestsPerMinute < 0 || d.RateLimit.DailyRequests < 0 {
		return fmt.Errorf("%w: rate limits must not be negative", ErrInvalidDefinition)
	}
	if d.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidDefinition)
	}
	return nil
}

// SupportsEntity reports whether the connector type can sync the given entity
func (d *Definition) SupportsEntity(entity EntityType) bool {
	for _, e := range d.SupportedEntities {
		if e == entity {
			return true
		}
	}
	return false
}

// SupportsDirection reports whether the connector type can sync in the given
// direction. Bidirectional support covers inbound and outbound.
func (d *Definition) SupportsDirection(direction Direction) bool {
	for _, sd := range d.SupportedDirections {
		if sd == direction {
			return true
		}
		if sd == DirectionBidirectional && (direction == DirectionInbound || direction == DirectionOutbound) {
			return true
		}
	}
	return false
}

// BuiltinDefinitions returns the catalog entries shipped with the hub.
// Rate limits mirror the published budgets of each vendor's standard plan.
func BuiltinDefinitions() []Definition {
	return []Definition{
		{
			Type:                     TypeOdoo,
			Name:                     "Odoo",
			AuthType:                 AuthAPIKey,
			SupportedEntities:        []EntityType{EntityContact, EntityProduct, EntityOrder, EntityInvoice},
			SupportedDirections:      []Direction{DirectionBidirectional},
			RateLimit:                RateLimit{RequestsPerMinute: 60, DailyRequests: 50000},
			SupportsWebhooks:         true,
			RequiredCredentialFields: []string{"database", "username", "api_key"},
			TimeoutSeconds:           3600,
		},
		{
			Type:                     TypeStripe,
			Name:                     "Stripe",
			AuthType:                 AuthAPIKey,
			SupportedEntities:        []EntityType{EntityContact, EntityInvoice, EntityPayment},
			SupportedDirections:      []Direction{DirectionInbound},
			RateLimit:                RateLimit{RequestsPerMinute: 100, DailyRequests: 100000},
			SupportsWebhooks:         true,
			RequiredCredentialFields: []string{"secret_key"},
			TimeoutSeconds:           1800,
		},
		{
			Type:                     TypeHubSpot,
			Name:                     "HubSpot",
			AuthType:                 AuthOAuth2,
			SupportedEntities:        []EntityType{EntityContact, EntityOrder},
			SupportedDirections:      []Direction{DirectionBidirectional},
			RateLimit:                RateLimit{RequestsPerMinute: 110, DailyRequests: 250000},
			SupportsWebhooks:         true,
			RequiredCredentialFields: []string{"access_token", "refresh_token"},
			TimeoutSeconds:           1800,
		},
		{
			Type:                     TypeShopify,
			Name:                     "Shopify",
			AuthType:                 AuthToken,
			SupportedEntities:        []EntityType{EntityProduct, EntityOrder},
			SupportedDirections:      []Direction{DirectionBidirectional},
			RateLimit:                RateLimit{RequestsPerMinute: 40, DailyRequests: 40000},
			SupportsWebhooks:         true,
			RequiredCredentialFields: []string{"shop_domain", "access_token"},
			TimeoutSeconds:           1800,
		},
		{
			Type:                     TypeQuickBooks,
			Name:                     "QuickBooks",
			AuthType:                 AuthOAuth2,
			SupportedEntities:        []EntityType{EntityInvoice, EntityPayment, EntityContact},
			SupportedDirections:      []Direction{DirectionOutbound},
			RateLimit:                RateLimit{RequestsPerMinute: 30, DailyRequests: 10000},
			SupportsWebhooks:         false,
			RequiredCredentialFields: []string{"realm_id", "access_token", "refresh_token"},
			TimeoutSeconds:           1800,
		},
	}
}
