package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/becomeliminal/nim-memory/core"
)

// Dispatcher executes the tool_use blocks of a model response and builds
// the tool_result blocks for the next request.
type Dispatcher struct {
	registry *ToolRegistry
}

// NewDispatcher creates a Dispatcher over registry.
func NewDispatcher(registry *ToolRegistry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Registry returns the dispatcher's tool registry.
func (d *Dispatcher) Registry() *ToolRegistry {
	return d.registry
}

// Dispatch runs every tool_use block in order. Each block gets exactly one
// tool_result; tool failures become error results so the agent loop can
// continue. Text blocks are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, blocks []anthropic.ContentBlockUnion) ([]anthropic.ContentBlockParamUnion, []core.ToolExecution) {
	var toolResults []anthropic.ContentBlockParamUnion
	var executions []core.ToolExecution

	for _, block := range blocks {
		if block.Type != "tool_use" {
			continue
		}

		if ctx.Err() != nil {
			toolResults = append(toolResults, anthropic.NewToolResultBlock(
				block.ID, fmt.Sprintf("cancelled: %v", ctx.Err()), true))
			continue
		}

		tool, ok := d.registry.Get(block.Name)
		if !ok {
			toolResults = append(toolResults, anthropic.NewToolResultBlock(
				block.ID, fmt.Sprintf("unknown tool: %s", block.Name), true))
			continue
		}

		var baseInput core.BaseInput
		if err := json.Unmarshal(block.Input, &baseInput); err != nil {
			toolResults = append(toolResults, anthropic.NewToolResultBlock(
				block.ID, fmt.Sprintf("invalid tool input JSON: %s", err.Error()), true))
			continue
		}

		startTime := time.Now()
		result, err := tool.Execute(ctx, &core.ToolParams{
			UserID:    userID,
			Input:     block.Input,
			RequestID: block.ID,
		})
		execution := core.ToolExecution{
			Tool:       block.Name,
			Input:      block.Input,
			DurationMs: time.Since(startTime).Milliseconds(),
		}

		switch {
		case err != nil:
			execution.Error = err.Error()
			toolResults = append(toolResults, anthropic.NewToolResultBlock(block.ID, err.Error(), true))
		case result == nil:
			execution.Error = "no result returned"
			toolResults = append(toolResults, anthropic.NewToolResultBlock(block.ID, execution.Error, true))
		case !result.Success:
			execution.Error = result.Error
			toolResults = append(toolResults, anthropic.NewToolResultBlock(block.ID, result.Error, true))
		default:
			execution.Result = result.Data
			resultBytes, err := json.Marshal(result.Data)
			if err != nil {
				execution.Error = err.Error()
				toolResults = append(toolResults, anthropic.NewToolResultBlock(
					block.ID, fmt.Sprintf("encode result: %v", err), true))
				break
			}
			toolResults = append(toolResults, anthropic.NewToolResultBlock(block.ID, string(resultBytes), false))
		}

		log.Printf("[ENGINE] %s user=%s ok=%v %dms%s", block.Name, userID, execution.Error == "",
			execution.DurationMs, thoughtSuffix(baseInput.Thought))
		executions = append(executions, execution)
	}

	return toolResults, executions
}

func thoughtSuffix(thought string) string {
	thought = strings.TrimSpace(thought)
	if thought == "" {
		return ""
	}
	if len(thought) > 80 {
		cut := 80
		for cut > 0 && !utf8.RuneStart(thought[cut]) {
			cut--
		}
		thought = thought[:cut] + "..."
	}
	return " thought=" + fmt.Sprintf("%q", thought)
}
