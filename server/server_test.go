package server

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/mock"
	"github.com/becomeliminal/nim-memory/memory/memorytest"
	"github.com/becomeliminal/nim-memory/tools"
)

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func newManager(t *testing.T) *memory.Manager {
	t.Helper()
	mgr, err := memory.NewManager(memorytest.NewInMemoryStore(), mock.NewWithDimensions(16), nil)
	require.NoError(t, err)
	return mgr
}

func TestHandler_RoundTrip(t *testing.T) {
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){}
	for _, tool := range tools.MemoryTools(newManager(t)) {
		handlers[tool.Name()] = Handler(tool)
	}
	ctx := context.Background()

	res, err := handlers["record_memory"](ctx, makeReq(map[string]interface{}{"input_str": "invoice 42 is paid"}))
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))

	var recorded struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &recorded))
	require.NotEmpty(t, recorded.ID)

	res, err = handlers["recall_memory"](ctx, makeReq(map[string]interface{}{"query_str": "invoice 42 is paid", "top_k": 1}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var recalled struct {
		Memories []struct {
			Text string `json:"text"`
			ID   string `json:"id"`
		} `json:"memories"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &recalled))
	require.Len(t, recalled.Memories, 1)
	assert.Equal(t, recorded.ID, recalled.Memories[0].ID)

	res, err = handlers["update_memory"](ctx, makeReq(map[string]interface{}{"memory_id": recorded.ID, "input_str": "invoice 42 was refunded"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.JSONEq(t, `{"updated":true}`, textOf(t, res))
}

func TestHandler_ToolFailureIsErrorResult(t *testing.T) {
	var record mcp.CallToolResult
	for _, tool := range tools.MemoryTools(newManager(t)) {
		if tool.Name() != "record_memory" {
			continue
		}
		res, err := Handler(tool)(context.Background(), makeReq(nil))
		require.NoError(t, err)
		record = *res
	}
	assert.True(t, record.IsError)
	assert.Contains(t, textOf(t, &record), "input_str is required")
}

func TestDefinition_UsesToolSchema(t *testing.T) {
	for _, tool := range tools.MemoryTools(newManager(t)) {
		def, err := Definition(tool)
		require.NoError(t, err)
		assert.Equal(t, tool.Name(), def.Name)

		var schema map[string]interface{}
		require.NoError(t, json.Unmarshal(def.RawInputSchema, &schema))
		assert.Equal(t, "object", schema["type"])
	}
}

func TestNew_ListsMemoryTools(t *testing.T) {
	s, err := New(newManager(t))
	require.NoError(t, err)

	resp := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	out, err := json.Marshal(resp)
	require.NoError(t, err)

	for _, name := range []string{"record_memory", "recall_memory", "update_memory"} {
		assert.Contains(t, string(out), name)
	}
}
