package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtualab/virtualab/llm"
)

func echoTool(name string) Tool {
	return Tool{
		Schema: llm.ToolSchema{
			Name: name,
			Parameters: ObjectSchema(map[string]any{
				"text": map[string]any{"type": "string"},
			}, "text"),
		},
		Fn: func(_ context.Context, args map[string]any) (any, error) {
			return args["text"], nil
		},
	}
}

func TestRegistryCallSuccess(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(echoTool("echo")))

	res := r.Call(context.Background(), llm.ToolCall{
		ID:        "call-1",
		Name:      "echo",
		Arguments: json.RawMessage(`{"text":"hi"}`),
	})

	assert.True(t, res.Success)
	assert.Equal(t, "hi", res.Output)
	assert.Empty(t, res.Error)
	assert.Equal(t, "call-1", res.CallID)
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(echoTool("echo")))

	res := r.Call(context.Background(), llm.ToolCall{Name: "fetch_pubmed"})

	assert.False(t, res.Success)
	assert.Equal(t, "unknown tool: fetch_pubmed", res.Error)
}

func TestRegistryInvalidArguments(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(echoTool("echo")))

	t.Run("malformed json", func(t *testing.T) {
		res := r.Call(context.Background(), llm.ToolCall{
			Name:      "echo",
			Arguments: json.RawMessage(`{"text":`),
		})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "invalid arguments for echo")
	})

	t.Run("missing required", func(t *testing.T) {
		res := r.Call(context.Background(), llm.ToolCall{
			Name:      "echo",
			Arguments: json.RawMessage(`{"other":1}`),
		})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "invalid arguments for echo")
		assert.Contains(t, res.Error, `"text"`)
	})
}

func TestRegistryToolError(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(Tool{
		Schema: llm.ToolSchema{Name: "boom"},
		Fn: func(context.Context, map[string]any) (any, error) {
			return nil, fmt.Errorf("upstream unavailable")
		},
	}))

	res := r.Call(context.Background(), llm.ToolCall{Name: "boom"})

	assert.False(t, res.Success)
	assert.Equal(t, "tool execution error: upstream unavailable", res.Error)
}

func TestRegistryToolPanicIsContained(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(Tool{
		Schema: llm.ToolSchema{Name: "panicky"},
		Fn: func(context.Context, map[string]any) (any, error) {
			panic("nil map write")
		},
	}))

	res := r.Call(context.Background(), llm.ToolCall{Name: "panicky"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "tool execution error")
	assert.Contains(t, res.Error, "nil map write")
}

func TestRegistrySchemasKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry(nil)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(echoTool(name)))
	}
	// re-registering must not move the catalogue position
	require.NoError(t, r.Register(echoTool("alpha")))

	schemas := r.Schemas()
	require.Len(t, schemas, 3)
	assert.Equal(t, "zeta", schemas[0].Name)
	assert.Equal(t, "alpha", schemas[1].Name)
	assert.Equal(t, "mid", schemas[2].Name)
}

func TestRegistryRegisterValidation(t *testing.T) {
	r := NewRegistry(nil)
	assert.Error(t, r.Register(Tool{Schema: llm.ToolSchema{Name: ""}}))
	assert.Error(t, r.Register(Tool{Schema: llm.ToolSchema{Name: "no-fn"}}))
}

func TestResultJSON(t *testing.T) {
	ok := Result{Success: true, Output: map[string]any{"n": 1}}
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(ok.JSON()), &decoded))
	assert.Equal(t, true, decoded["success"])

	bad := Result{Success: false, Error: "nope"}
	require.NoError(t, json.Unmarshal([]byte(bad.JSON()), &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.Equal(t, "nope", decoded["error"])
}
