package connector

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the connector catalog and the runtime adapters.
// Definitions and adapters are registered during startup; lookups afterwards
// are concurrency-safe and read-only.
type Registry struct {
	mu          sync.RWMutex
	definitions map[Type]Definition
	adapters    map[Type]Connector
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[Type]Definition),
		adapters:    make(map[Type]Connector),
	}
}

// NewRegistryWithBuiltins creates a registry pre-seeded with the builtin catalog
func NewRegistryWithBuiltins() (*Registry, error) {
	r := NewRegistry()
	for _, def := range BuiltinDefinitions() {
		if err := r.RegisterDefinition(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RegisterDefinition adds a catalog entry. Registering the same type twice fails.
func (r *Registry) RegisterDefinition(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("%w: %s", ErrConnectorAlreadyRegistered, def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// RegisterAdapter binds a runtime adapter to its catalog entry.
// The definition must already be registered.
func (r *Registry) RegisterAdapter(adapter Connector) error {
	if adapter == nil {
		return fmt.Errorf("%w: nil adapter", ErrInvalidDefinition)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t := adapter.Type()
	if _, exists := r.definitions[t]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownConnectorType, t)
	}
	if _, exists := r.adapters[t]; exists {
		return fmt.Errorf("%w: %s", ErrConnectorAlreadyRegistered, t)
	}
	r.adapters[t] = adapter
	return nil
}

// Definition returns the catalog entry for a connector type
func (r *Registry) Definition(t Type) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.definitions[t]
	if !exists {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownConnectorType, t)
	}
	return def, nil
}

// Definitions returns all catalog entries ordered by type
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.definitions))
	for _, def := range r.definitions {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Type < defs[j].Type
	})
	return defs
}

// Connector returns the runtime adapter for a connector type
func (r *Registry) Connector(t Type) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.definitions[t]; !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnectorType, t)
	}
	adapter, exists := r.adapters[t]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrConnectorNotRegistered, t)
	}
	return adapter, nil
}

// HasAdapter reports whether a runtime adapter is bound to the type
func (r *Registry) HasAdapter(t Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.adapters[t]
	return exists
}
