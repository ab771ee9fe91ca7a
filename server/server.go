// Package server exposes the memory tools over the Model Context Protocol.
//
// This is only wiring: each core.Tool becomes an MCP tool with the same
// name, description and input schema.
package server

import (
	"context"
	"fmt"
	"log"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates an MCP server with the memory tools bound to store.
func New(store tools.MemoryStore) (*server.MCPServer, error) {
	s := server.NewMCPServer(
		"nim-memory",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	for _, tool := range tools.MemoryTools(store) {
		def, err := Definition(tool)
		if err != nil {
			return nil, err
		}
		s.AddTool(def, Handler(tool))
	}
	return s, nil
}

// Definition converts a core.Tool to an MCP tool definition.
func Definition(tool core.Tool) (mcp.Tool, error) {
	schema, err := json.Marshal(tool.Schema())
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("encode %s schema: %w", tool.Name(), err)
	}
	return mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema), nil
}

// Handler adapts a core.Tool to an MCP tool handler. Tool failures are
// returned as error results, not protocol errors.
func Handler(tool core.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		input, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := tool.Execute(ctx, &core.ToolParams{Input: input})
		if err != nil {
			log.Printf("[MCP] %s failed: %v", tool.Name(), err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		if result == nil || !result.Success {
			msg := "no result returned"
			if result != nil {
				msg = result.Error
			}
			return mcp.NewToolResultError(msg), nil
		}

		data, err := json.Marshal(result.Data)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func serverInstructions() string {
	return `nim-memory is a long-term memory for agents.

- record_memory saves a note and returns its id.
- recall_memory returns the notes most related to a query (top_k, default 3), each with its id.
- update_memory replaces the text of a note by id; "updated": false means no note has that id.

Recall before answering questions about past conversations. Prefer update_memory over recording a near-duplicate.`
}
