package tools

import (
	"context"

	"github.com/becomeliminal/nim-memory/core"
)

// HandlerFunc executes a tool call.
type HandlerFunc func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error)

// Builder assembles a core.Tool:
//
//	tools.New("record_memory").
//		Description("...").
//		Schema(tools.ObjectSchema(...)).
//		Handler(fn)
type Builder struct {
	name        string
	description string
	schema      map[string]interface{}
}

// New starts a tool with the given name.
func New(name string) *Builder {
	return &Builder{name: name}
}

// Description sets the tool description.
func (b *Builder) Description(description string) *Builder {
	b.description = description
	return b
}

// Schema sets the input JSON Schema. Default: an empty object schema.
func (b *Builder) Schema(schema map[string]interface{}) *Builder {
	b.schema = schema
	return b
}

// Handler sets the handler and returns the finished tool.
func (b *Builder) Handler(handler HandlerFunc) core.Tool {
	schema := b.schema
	if schema == nil {
		schema = ObjectSchema(map[string]interface{}{})
	}
	return &builtTool{
		name:        b.name,
		description: b.description,
		schema:      schema,
		handler:     handler,
	}
}

type builtTool struct {
	name        string
	description string
	schema      map[string]interface{}
	handler     HandlerFunc
}

func (t *builtTool) Name() string                   { return t.name }
func (t *builtTool) Description() string            { return t.description }
func (t *builtTool) Schema() map[string]interface{} { return t.schema }

func (t *builtTool) Execute(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
	return t.handler(ctx, params)
}
