package connector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAdapter is a minimal Connector for registry tests
type stubAdapter struct {
	t Type
}

func (s *stubAdapter) Type() Type { return s.t }

func (s *stubAdapter) Probe(_ context.Context, _ ConnectionInfo) (*ProbeResult, error) {
	return &ProbeResult{Success: true}, nil
}

func (s *stubAdapter) Fetch(_ context.Context, _ ConnectionInfo, _ FetchRequest) (*FetchPage, error) {
	return &FetchPage{}, nil
}

func (s *stubAdapter) Write(_ context.Context, _ ConnectionInfo, _ WriteRequest) (*WriteResult, error) {
	return &WriteResult{}, nil
}

func validDefinition() Definition {
	return Definition{
		Type:                     TypeOdoo,
		Name:                     "Odoo",
		AuthType:                 AuthAPIKey,
		SupportedEntities:        []EntityType{EntityContact, EntityOrder},
		SupportedDirections:      []Direction{DirectionBidirectional},
		RateLimit:                RateLimit{RequestsPerMinute: 60, DailyRequests: 1000},
		SupportsWebhooks:         true,
		RequiredCredentialFields: []string{"database", "username", "api_key"},
		TimeoutSeconds:           600,
	}
}

func TestRegistry_RegisterDefinition(t *testing.T) {
	t.Run("registers valid definition", func(t *testing.T) {
		r := NewRegistry()
		err := r.RegisterDefinition(validDefinition())
		require.NoError(t, err)

		def, err := r.Definition(TypeOdoo)
		require.NoError(t, err)
		assert.Equal(t, "Odoo", def.Name)
	})

	t.Run("rejects duplicate type", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.RegisterDefinition(validDefinition()))

		err := r.RegisterDefinition(validDefinition())
		assert.ErrorIs(t, err, ErrConnectorAlreadyRegistered)
	})

	t.Run("rejects invalid definition", func(t *testing.T) {
		r := NewRegistry()
		def := validDefinition()
		def.SupportedEntities = nil

		err := r.RegisterDefinition(def)
		assert.ErrorIs(t, err, ErrInvalidDefinition)
	})
}

func TestRegistry_RegisterAdapter(t *testing.T) {
	t.Run("binds adapter to registered definition", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.RegisterDefinition(validDefinition()))

		err := r.RegisterAdapter(&stubAdapter{t: TypeOdoo})
		require.NoError(t, err)

		adapter, err := r.Connector(TypeOdoo)
		require.NoError(t, err)
		assert.Equal(t, TypeOdoo, adapter.Type())
		assert.True(t, r.HasAdapter(TypeOdoo))
	})

	t.Run("rejects adapter without definition", func(t *testing.T) {
		r := NewRegistry()
		err := r.RegisterAdapter(&stubAdapter{t: TypeStripe})
		assert.ErrorIs(t, err, ErrUnknownConnectorType)
	})

	t.Run("rejects duplicate adapter", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.RegisterDefinition(validDefinition()))
		require.NoError(t, r.RegisterAdapter(&stubAdapter{t: TypeOdoo}))

		err := r.RegisterAdapter(&stubAdapter{t: TypeOdoo})
		assert.ErrorIs(t, err, ErrConnectorAlreadyRegistered)
	})
}

func TestRegistry_Connector(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Connector(TypeShopify)
		assert.ErrorIs(t, err, ErrUnknownConnectorType)
	})

	t.Run("definition without adapter", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.RegisterDefinition(validDefinition()))

		_, err := r.Connector(TypeOdoo)
		assert.ErrorIs(t, err, ErrConnectorNotRegistered)
	})
}

func TestRegistry_Definitions(t *testing.T) {
	r, err := NewRegistryWithBuiltins()
	require.NoError(t, err)

	defs := r.Definitions()
	require.NotEmpty(t, defs)

	// Sorted by type
	for i := 1; i < len(defs); i++ {
		assert.True(t, defs[i-1].Type < defs[i].Type)
	}

	// Every builtin entry validates
	for _, def := range defs {
		assert.NoError(t, def.Validate())
	}
}

func TestDefinition_SupportsEntity(t *testing.T) {
	def := validDefinition()

	assert.True(t, def.SupportsEntity(EntityContact))
	assert.True(t, def.SupportsEntity(EntityOrder))
	assert.False(t, def.SupportsEntity(EntityPayment))
}

func TestDefinition_SupportsDirection(t *testing.T) {
	t.Run("bidirectional covers both directions", func(t *testing.T) {
		def := validDefinition()

		assert.True(t, def.SupportsDirection(DirectionInbound))
		assert.True(t, def.SupportsDirection(DirectionOutbound))
		assert.True(t, def.SupportsDirection(DirectionBidirectional))
	})

	t.Run("inbound only", func(t *testing.T) {
		def := validDefinition()
		def.SupportedDirections = []Direction{DirectionInbound}

		assert.True(t, def.SupportsDirection(DirectionInbound))
		assert.False(t, def.SupportsDirection(DirectionOutbound))
		assert.False(t, def.SupportsDirection(DirectionBidirectional))
	})
}

func TestDefinition_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Definition)
	}{
		{"invalid type", func(d *Definition) { d.Type = "salesforce" }},
		{"empty name", func(d *Definition) { d.Name = "" }},
		{"invalid auth type", func(d *Definition) { d.AuthType = "certificate" }},
		{"no entities", func(d *Definition) { d.SupportedEntities = nil }},
		{"invalid entity", func(d *Definition) { d.SupportedEntities = []EntityType{"warehouse"} }},
		{"no directions", func(d *Definition) { d.SupportedDirections = nil }},
		{"invalid direction", func(d *Definition) { d.SupportedDirections = []Direction{"sideways"} }},
		{"negative rate limit", func(d *Definition) { d.RateLimit.RequestsPerMinute = -1 }},
		{"negative timeout", func(d *Definition) { d.TimeoutSeconds = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(&def)
			assert.ErrorIs(t, def.Validate(), ErrInvalidDefinition)
		})
	}
}
