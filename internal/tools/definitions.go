// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"fmt"
	"sync"

	"github.com/jeranaias/rigrun-pal/internal/host"
)

// =============================================================================
// PARAMETERS
// =============================================================================

// Parameter describes one tool argument.
type Parameter struct {
	Name        string
	Type        string // JSON schema type: "string", "integer", "boolean"
	Description string
	Required    bool
}

// =============================================================================
// TOOL DEFINITION
// =============================================================================

// Definition is a tool offered to the model.
type Definition struct {
	// Name is the tool identifier the model calls.
	Name string

	// Description tells the model when to use the tool.
	Description string

	// Parameters are the tool arguments in declaration order.
	Parameters []Parameter
}

// Schema returns the JSON schema object for the tool input.
func (d Definition) Schema() map[string]any {
	props := make(map[string]any, len(d.Parameters))
	required := make([]string, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		props[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// HostTool converts the definition to the host representation.
func (d Definition) HostTool() host.Tool {
	return host.Tool{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: d.Schema(),
	}
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry is an ordered, concurrency-safe set of tool definitions.
type Registry struct {
	mu    sync.RWMutex
	order []string
	defs  map[string]Definition
}

// NewRegistry creates a registry holding defs.
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{defs: make(map[string]Definition)}
	for _, d := range defs {
		// Duplicate names in the constructor are a programming error.
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a definition. Names must be unique.
func (r *Registry) Register(d Definition) error {
	if d.Name == "" {
		return fmt.Errorf("tool definition has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[d.Name]; ok {
		return fmt.Errorf("tool %q already registered", d.Name)
	}
	r.defs[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// Get returns the definition with the given name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// Tools implements host.ToolRegistry.
func (r *Registry) Tools() []host.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]host.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name].HostTool())
	}
	return out
}
