// Package tools defines the capability surface the generation model can
// invoke. Tools are registered by name in a Registry; during a query the
// agent dispatches model tool requests through the Registry rather than
// letting the framework auto-run them, so retrieved sources stay on the
// return path.
package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// Definition describes a tool to the model: its name, when to use it,
// and the shape of its input.
type Definition struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Outcome is a tool execution result. Text is what the model sees;
// Sources are the citation labels behind it, ordered and de-duplicated.
// Sources travel with the outcome — there is no shared mutable
// last-sources state.
type Outcome struct {
	Text    string
	Sources []string
}

// Tool is one model-invocable capability.
type Tool interface {
	Definition() Definition
	Execute(ctx context.Context, args map[string]any) (Outcome, error)
}
