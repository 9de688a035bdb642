package toolbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTool_Simple(t *testing.T) {
	t.Parallel()
	type Args struct {
		X int `json:"x"`
	}
	type Out struct {
		Y int `json:"y"`
	}
	tool, err := NewTool("add_one", "Add one", func(_ context.Context, a Args) (Out, error) {
		return Out{Y: a.X + 1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "add_one", tool.Name())
	assert.Equal(t, "Add one", tool.Description())
	params := tool.Parameters()
	require.NotNil(t, params)
	props, _, _ := schemaParams(params)
	assert.Contains(t, props, "x")
}

func TestNewTool_Execute(t *testing.T) {
	t.Parallel()
	type Args struct {
		X int `json:"x"`
	}
	type Out struct {
		Y int `json:"y"`
	}
	tool, err := NewTool("double", "Double", func(_ context.Context, a Args) (Out, error) {
		return Out{Y: a.X * 2}, nil
	})
	require.NoError(t, err)
	data, err := tool.Execute(context.Background(), raw(`{"x": 21}`))
	require.NoError(t, err)
	var out Out
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 42, out.Y)
}

func TestNewTool_InvalidArguments(t *testing.T) {
	t.Parallel()
	type Args struct {
		X int `json:"x"`
	}
	tool, err := NewTool("strict_int", "needs int", func(_ context.Context, a Args) (int, error) {
		return a.X, nil
	})
	require.NoError(t, err)
	_, err = tool.Execute(context.Background(), raw(`{"x": "not an int"}`))
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewTool_HandlerErrorPassesThrough(t *testing.T) {
	t.Parallel()
	type Args struct {
		Path string `json:"path,omitempty"`
	}
	handlerErr := errors.New("no such file: /etc/missing")
	tool, err := NewTool("read", "reads a file", func(_ context.Context, _ Args) (string, error) {
		return "", handlerErr
	})
	require.NoError(t, err)
	_, err = tool.Execute(context.Background(), raw(`{}`))
	// the model needs the tool's own message to correct course
	assert.ErrorIs(t, err, handlerErr)
	assert.False(t, IsSystemError(err))
}

func TestNewTool_Strict(t *testing.T) {
	t.Parallel()
	type Args struct {
		X int `json:"x"`
	}
	tool, err := NewTool("sealed", "strict tool", func(_ context.Context, a Args) (int, error) {
		return a.X, nil
	}, WithStrict())
	require.NoError(t, err)

	tm, ok := tool.(ToolMetadata)
	require.True(t, ok)
	assert.True(t, tm.IsStrict())

	_, err = tool.Execute(context.Background(), raw(`{"x": 1, "extra": true}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = tool.Execute(context.Background(), raw(`{"x": 1}`))
	require.NoError(t, err)
}

func TestNewTool_NonStrictAllowsExtra(t *testing.T) {
	t.Parallel()
	type Args struct {
		X int `json:"x,omitempty"`
	}
	tool, err := NewTool("open", "lenient tool", func(_ context.Context, a Args) (int, error) {
		return a.X, nil
	})
	require.NoError(t, err)
	_, err = tool.Execute(context.Background(), raw(`{"x": 1, "extra": true}`))
	assert.NoError(t, err)
}

func TestNewTool_Metadata(t *testing.T) {
	t.Parallel()
	type Args struct {
		X int `json:"x,omitempty"`
	}
	tool, err := NewTool("meta", "with metadata", func(_ context.Context, a Args) (int, error) {
		return a.X, nil
	},
		WithTimeout(3*time.Second),
		WithTags("fs", "read"),
		WithVersion("1.2.0"),
		WithDangerous(),
	)
	require.NoError(t, err)
	tm, ok := tool.(ToolMetadata)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, tm.Timeout())
	assert.Equal(t, []string{"fs", "read"}, tm.Tags())
	assert.Equal(t, "1.2.0", tm.Version())
	assert.True(t, tm.IsDangerous())
	assert.False(t, tm.IsStrict())
}

func TestNewTool_SchemaTags(t *testing.T) {
	t.Parallel()
	type Args struct {
		Mode string `json:"mode,omitempty" description:"Transfer mode" enum:"fast,safe"`
	}
	tool, err := NewTool("tagged_schema", "t", func(_ context.Context, a Args) (string, error) {
		return a.Mode, nil
	})
	require.NoError(t, err)
	params := tool.Parameters()
	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	mode, ok := props["mode"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Transfer mode", mode["description"])
	assert.Equal(t, []any{"fast", "safe"}, mode["enum"])

	// the enum is enforced, not just advertised
	_, err = tool.Execute(context.Background(), raw(`{"mode":"reckless"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewDynamicTool(t *testing.T) {
	t.Parallel()
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		"required": []any{"x"},
	}
	tool, err := NewDynamicTool("dyn", "dynamic", schema, echoHandler)
	require.NoError(t, err)

	data, err := tool.Execute(context.Background(), raw(`{"x": 5}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":5}`, string(data))

	_, err = tool.Execute(context.Background(), raw(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewDynamicTool_NilInputs(t *testing.T) {
	t.Parallel()
	_, err := NewDynamicTool("x", "d", nil, echoHandler)
	assert.Error(t, err)
	_, err = NewDynamicTool("x", "d", map[string]any{"type": "object"}, nil)
	assert.Error(t, err)
}

func TestNewDynamicTool_DoesNotMutateSchema(t *testing.T) {
	t.Parallel()
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
	}
	_, err := NewDynamicTool("x", "d", schema, echoHandler, WithStrict())
	require.NoError(t, err)
	// strict mode was applied to a copy only
	_, mutated := schema["additionalProperties"]
	assert.False(t, mutated)
}

func TestTool_ParametersIsolated(t *testing.T) {
	t.Parallel()
	tool, err := NewDynamicTool("x", "d", map[string]any{"type": "object"}, echoHandler)
	require.NoError(t, err)
	p := tool.Parameters()
	p["type"] = "mangled"
	assert.Equal(t, "object", tool.Parameters()["type"])
}
