package tools

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrToolNotFound is returned by Execute for an unregistered name.
	ErrToolNotFound = errors.New("tools: tool not found")

	// ErrDuplicateTool is returned by Register when the name is taken.
	ErrDuplicateTool = errors.New("tools: tool already registered")
)

// Registry maps tool names to implementations. Registration happens at
// startup; after that the registry is read-only and safe for
// concurrent dispatch.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool under its definition name.
func (r *Registry) Register(t Tool) error {
	name := t.Definition().Name
	if name == "" {
		return fmt.Errorf("tools: tool has empty name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Definitions returns the registered tool definitions in registration
// order, for offering to the model.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Execute dispatches by name. An unknown name returns ErrToolNotFound;
// the caller decides whether that aborts the query or becomes an error
// message the model can read.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (Outcome, error) {
	t, ok := r.tools[name]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return t.Execute(ctx, args)
}
