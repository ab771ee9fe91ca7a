package tools

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/goccy/go-json"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
)

// Tool names of the memory tool set.
const (
	RecordMemoryTool = "record_memory"
	RecallMemoryTool = "recall_memory"
	UpdateMemoryTool = "update_memory"
)

// MemoryStore is the part of memory.Manager the tools call.
type MemoryStore interface {
	Store(ctx context.Context, text string) (string, error)
	Retrieve(ctx context.Context, query string, k int) ([]memory.Result, error)
	Update(ctx context.Context, id string, text string) (bool, error)
}

// MemoryToolDefinitions returns the definitions of the memory tools.
func MemoryToolDefinitions() []core.ToolDefinition {
	return []core.ToolDefinition{
		{
			ToolName:        RecordMemoryTool,
			ToolDescription: "Save a note to long-term memory so it can be recalled in later conversations. Returns the id of the new memory.",
			InputSchema: BuildSchemaWithThought(map[string]interface{}{
				"input_str": StringProperty("The note to remember, as a self-contained sentence"),
			}, false, "input_str"),
		},
		{
			ToolName:        RecallMemoryTool,
			ToolDescription: "Find the memories most related to a query. Returns up to top_k memories with their ids, most relevant first.",
			InputSchema: BuildSchemaWithThought(map[string]interface{}{
				"query_str": StringProperty("What to look for"),
				"top_k":     MinIntegerProperty(fmt.Sprintf("Maximum number of memories to return (default: %d)", memory.DefaultTopK), 0),
			}, false, "query_str"),
		},
		{
			ToolName:        UpdateMemoryTool,
			ToolDescription: "Replace the text of an existing memory. Use an id returned by record_memory or recall_memory. Returns whether a memory was updated.",
			InputSchema: BuildSchemaWithThought(map[string]interface{}{
				"memory_id": StringProperty("Id of the memory to replace"),
				"input_str": StringProperty("The new text of the memory"),
			}, false, "memory_id", "input_str"),
		},
	}
}

// MemoryTools returns record_memory, recall_memory and update_memory bound
// to store.
func MemoryTools(store MemoryStore) []core.Tool {
	defs := make(map[string]core.ToolDefinition)
	for _, def := range MemoryToolDefinitions() {
		defs[def.ToolName] = def
	}
	build := func(name string, handler HandlerFunc) core.Tool {
		def := defs[name]
		return New(name).
			Description(def.ToolDescription).
			Schema(def.InputSchema).
			Handler(handler)
	}

	return []core.Tool{
		build(RecordMemoryTool, recordMemory(store)),
		build(RecallMemoryTool, recallMemory(store)),
		build(UpdateMemoryTool, updateMemory(store)),
	}
}

func recordMemory(store MemoryStore) HandlerFunc {
	return func(ctx context.Context, toolParams *core.ToolParams) (*core.ToolResult, error) {
		var params struct {
			core.BaseInput
			InputStr string `json:"input_str"`
		}
		if err := decodeInput(toolParams, &params); err != nil {
			return failure("invalid input: %v", err), nil
		}
		if strings.TrimSpace(params.InputStr) == "" {
			return failure("input_str is required"), nil
		}
		logThought(RecordMemoryTool, params.Thought)

		id, err := store.Store(ctx, params.InputStr)
		if err != nil {
			return failure("failed to record memory: %v", err), nil
		}
		return &core.ToolResult{
			Success: true,
			Data:    map[string]interface{}{"id": id},
		}, nil
	}
}

func recallMemory(store MemoryStore) HandlerFunc {
	return func(ctx context.Context, toolParams *core.ToolParams) (*core.ToolResult, error) {
		var params struct {
			core.BaseInput
			QueryStr string `json:"query_str"`
			TopK     *int   `json:"top_k,omitempty"`
		}
		if err := decodeInput(toolParams, &params); err != nil {
			return failure("invalid input: %v", err), nil
		}
		if strings.TrimSpace(params.QueryStr) == "" {
			return failure("query_str is required"), nil
		}
		topK := memory.DefaultTopK
		if params.TopK != nil {
			topK = *params.TopK
		}
		logThought(RecallMemoryTool, params.Thought)

		results, err := store.Retrieve(ctx, params.QueryStr, topK)
		if err != nil {
			return failure("failed to recall memories: %v", err), nil
		}

		memories := make([]map[string]interface{}, 0, len(results))
		for _, r := range results {
			memories = append(memories, map[string]interface{}{
				"text": r.Text,
				"id":   r.ID,
			})
		}
		return &core.ToolResult{
			Success: true,
			Data:    map[string]interface{}{"memories": memories},
		}, nil
	}
}

func updateMemory(store MemoryStore) HandlerFunc {
	return func(ctx context.Context, toolParams *core.ToolParams) (*core.ToolResult, error) {
		var params struct {
			core.BaseInput
			MemoryID string `json:"memory_id"`
			InputStr string `json:"input_str"`
		}
		if err := decodeInput(toolParams, &params); err != nil {
			return failure("invalid input: %v", err), nil
		}
		if strings.TrimSpace(params.MemoryID) == "" {
			return failure("memory_id is required"), nil
		}
		if strings.TrimSpace(params.InputStr) == "" {
			return failure("input_str is required"), nil
		}
		logThought(UpdateMemoryTool, params.Thought)

		updated, err := store.Update(ctx, params.MemoryID, params.InputStr)
		if err != nil {
			return failure("failed to update memory %s: %v", params.MemoryID, err), nil
		}
		return &core.ToolResult{
			Success: true,
			Data:    map[string]interface{}{"updated": updated},
		}, nil
	}
}

func decodeInput(toolParams *core.ToolParams, v interface{}) error {
	if toolParams == nil || len(toolParams.Input) == 0 {
		return fmt.Errorf("empty input")
	}
	return json.Unmarshal(toolParams.Input, v)
}

func failure(format string, args ...interface{}) *core.ToolResult {
	return &core.ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

func logThought(tool, thought string) {
	if thought = strings.TrimSpace(thought); thought != "" {
		log.Printf("[TOOLS] %s thought: %s", tool, thought)
	}
}
