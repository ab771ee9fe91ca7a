// Package core defines the contracts shared by tools and the code that
// executes them.
package core

import (
	"context"
	"encoding/json"
)

// Tool is a capability an agent can call.
type Tool interface {
	// Name is the identifier the model uses to call the tool.
	Name() string

	// Description tells the model what the tool does.
	Description() string

	// Schema is the JSON Schema of the tool input.
	Schema() map[string]interface{}

	// Execute runs the tool. Failures the agent should see are returned as
	// a ToolResult with Success false; a non-nil error means the tool
	// itself is broken.
	Execute(ctx context.Context, params *ToolParams) (*ToolResult, error)
}

// ToolDefinition describes a tool without its implementation.
type ToolDefinition struct {
	ToolName        string                 `json:"name"`
	ToolDescription string                 `json:"description"`
	InputSchema     map[string]interface{} `json:"input_schema"`
}

// ToolParams is the input to Tool.Execute.
type ToolParams struct {
	// UserID identifies the caller.
	UserID string

	// Input is the raw JSON the model produced for the tool.
	Input json.RawMessage

	// RequestID correlates the call with its tool_use block.
	RequestID string
}

// ToolResult is the outcome of a tool call.
type ToolResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ToolExecution records one executed tool call.
type ToolExecution struct {
	Tool       string          `json:"tool"`
	Input      json.RawMessage `json:"input"`
	Result     interface{}     `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// DefinitionOf returns the definition of a tool.
func DefinitionOf(t Tool) ToolDefinition {
	return ToolDefinition{
		ToolName:        t.Name(),
		ToolDescription: t.Description(),
		InputSchema:     t.Schema(),
	}
}
