// Package engine registers tools and executes the tool_use blocks of an
// Anthropic message against them.
package engine

import (
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/becomeliminal/nim-memory/core"
)

// ToolRegistry holds tools by name, in registration order.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]core.Tool
	order []string
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]core.Tool)}
}

// Register adds tools. Names must be unique.
func (r *ToolRegistry) Register(tools ...core.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		if _, exists := r.tools[t.Name()]; exists {
			return fmt.Errorf("tool already registered: %s", t.Name())
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return nil
}

// Get returns the tool with the given name.
func (r *ToolRegistry) Get(name string) (core.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tools in registration order.
func (r *ToolRegistry) List() []core.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Definitions returns the definitions of all tools.
func (r *ToolRegistry) Definitions() []core.ToolDefinition {
	tools := r.List()
	defs := make([]core.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = core.DefinitionOf(t)
	}
	return defs
}

// ToAPITools converts the registry to Anthropic tool params.
func (r *ToolRegistry) ToAPITools() []anthropic.ToolUnionParam {
	tools := r.List()
	apiTools := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := t.Schema()
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: schema["properties"],
		}
		if required, ok := schema["required"].([]string); ok {
			inputSchema.Required = required
		}
		apiTools = append(apiTools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name(),
				Description: anthropic.String(t.Description()),
				InputSchema: inputSchema,
			},
		})
	}
	return apiTools
}
