// Package tools holds the model-callable functions and their registry.
// Every tool is read-only and idempotent: the model may retry a call
// without side effects.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lantern-ai/lantern/internal/provider"
)

// ErrUnknownTool is returned when the model requests a tool that is not
// registered.
var ErrUnknownTool = errors.New("tools: unknown tool")

// Tool is one function exposed to the model. Call receives the raw JSON
// argument payload and returns a text result fed back to the model.
type Tool interface {
	Definition() provider.ToolDefinition
	Call(ctx context.Context, args string) (string, error)
}

// Registry resolves tool calls by name.
type Registry struct {
	tools  map[string]Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry builds a registry. Registration order is preserved in
// Definitions so the model sees a stable tool list.
func NewRegistry(logger *slog.Logger, ts ...Tool) *Registry {
	r := &Registry{
		tools:  make(map[string]Tool, len(ts)),
		logger: logger,
	}
	for _, t := range ts {
		name := t.Definition().Name
		if _, dup := r.tools[name]; dup {
			continue
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return r
}

// Definitions returns the declarations advertised to the model.
func (r *Registry) Definitions() []provider.ToolDefinition {
	defs := make([]provider.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Call executes the named tool.
func (r *Registry) Call(ctx context.Context, name, args string) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	r.logger.Debug("calling tool", "tool", name)
	result, err := t.Call(ctx, args)
	if err != nil {
		return "", fmt.Errorf("tool %q: %w", name, err)
	}
	return result, nil
}
