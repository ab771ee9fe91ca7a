package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/core"
)

func TestBuilder(t *testing.T) {
	tool := New("echo").
		Description("Echo the input").
		Schema(ObjectSchema(map[string]interface{}{"msg": StringProperty("message")}, "msg")).
		Handler(func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			return &core.ToolResult{Success: true, Data: string(params.Input)}, nil
		})

	assert.Equal(t, "echo", tool.Name())
	assert.Equal(t, "Echo the input", tool.Description())
	assert.Equal(t, []string{"msg"}, tool.Schema()["required"])

	result, err := tool.Execute(context.Background(), &core.ToolParams{Input: []byte(`{"msg":"hi"}`)})
	require.NoError(t, err)
	assert.Equal(t, `{"msg":"hi"}`, result.Data)

	def := core.DefinitionOf(tool)
	assert.Equal(t, "echo", def.ToolName)
}

func TestBuilder_DefaultSchema(t *testing.T) {
	tool := New("noop").Handler(func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
		return &core.ToolResult{Success: true}, nil
	})
	assert.Equal(t, "object", tool.Schema()["type"])
}

func TestWithThought(t *testing.T) {
	schema := BuildSchemaWithThought(map[string]interface{}{"q": StringProperty("query")}, true, "q")
	props := schema["properties"].(map[string]interface{})
	assert.Contains(t, props, "thought")
	assert.Equal(t, []string{"q", "thought"}, schema["required"])

	optional := BuildSchemaWithThought(map[string]interface{}{}, false)
	assert.NotContains(t, optional, "required")
}

func TestWithThought_DoesNotAliasInput(t *testing.T) {
	props := map[string]interface{}{"q": StringProperty("query")}
	base := ObjectSchema(props, "q")
	_ = WithThought(base, true)

	assert.NotContains(t, props, "thought")
	assert.Equal(t, []string{"q"}, base["required"])
}

func TestMinIntegerProperty(t *testing.T) {
	p := MinIntegerProperty("count", 0)
	assert.Equal(t, "integer", p["type"])
	assert.Equal(t, 0, p["minimum"])
}
