package tool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrDuplicateTool is returned when registering a name that is already
	// taken, including re-registering the same instance.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrToolNotFound is returned by Get for an unregistered name.
	ErrToolNotFound = errors.New("tool not found")
)

// Registry maps tool names to implementations. Registration happens at
// startup from a single goroutine; lookups are safe for concurrent use.
type Registry struct {
	tools   map[string]Tool
	schemas map[string]*gojsonschema.Schema
	order   []string
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a tool and compiles its input schema. A name collision
// fails with ErrDuplicateTool even for an identical instance, so accidental
// double registration surfaces at startup.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if t.Description() == "" {
		return fmt.Errorf("tool %s: description cannot be empty", name)
	}
	if err := validateParams(name, t.Params()); err != nil {
		return err
	}

	schema, err := compileSchema(t)
	if err != nil {
		return fmt.Errorf("tool %s: failed to compile schema: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	r.tools[name] = t
	r.schemas[name] = schema
	r.order = append(r.order, name)

	log.Info().Str("tool", name).Msg("Tool registered")

	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// List returns descriptors in registration order. The order is stable so
// tool-selection prompts are deterministic across runs.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		descriptors = append(descriptors, Descriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Params:      t.Params(),
		})
	}
	return descriptors
}

// Describe returns descriptors for the named tools, in the given order.
// Unknown names fail with ErrToolNotFound.
func (r *Registry) Describe(names []string) ([]Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
		}
		descriptors = append(descriptors, Descriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Params:      t.Params(),
		})
	}
	return descriptors, nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

func (r *Registry) schema(name string) *gojsonschema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas[name]
}

func validateParams(toolName string, params []Param) error {
	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}

	for _, p := range params {
		if p.Name == "" {
			return fmt.Errorf("tool %s: parameter name cannot be empty", toolName)
		}
		if !validTypes[p.Type] {
			return fmt.Errorf("tool %s: invalid parameter type %q for %s", toolName, p.Type, p.Name)
		}
	}
	return nil
}

func compileSchema(t Tool) (*gojsonschema.Schema, error) {
	desc := Descriptor{Name: t.Name(), Description: t.Description(), Params: t.Params()}
	loader := gojsonschema.NewGoLoader(desc.InputSchema())
	return gojsonschema.NewSchema(loader)
}
