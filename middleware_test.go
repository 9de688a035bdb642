package toolbridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingMiddleware(counter *int, order *[]string, label string) Middleware {
	return func(next Tool) Tool {
		return &countingTool{toolBase: toolBase{next: next}, counter: counter, order: order, label: label}
	}
}

type countingTool struct {
	toolBase
	counter *int
	order   *[]string
	label   string
}

func (c *countingTool) Execute(ctx context.Context, args []byte) ([]byte, error) {
	*c.counter++
	*c.order = append(*c.order, c.label)
	return c.next.Execute(ctx, args)
}

func TestRegistry_Use_WrapsRegisteredTools(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	tool, err := NewDynamicTool("echo", "echoes", map[string]any{"type": "object"}, echoHandler)
	require.NoError(t, err)
	reg.Register(tool)

	var count int
	var order []string
	reg.Use(countingMiddleware(&count, &order, "outer"), countingMiddleware(&count, &order, "inner"))

	res := reg.Execute(context.Background(), Call{ID: "1", ToolName: "echo", Args: raw(`{}`)})
	require.NoError(t, res.Err)
	assert.Equal(t, 2, count)
	// first middleware is outermost
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestRegistry_Use_AppliesToLaterRegistrations(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	var count int
	var order []string
	reg.Use(countingMiddleware(&count, &order, "mw"))

	tool, err := NewDynamicTool("late", "registered after Use", map[string]any{"type": "object"}, echoHandler)
	require.NoError(t, err)
	reg.Register(tool)

	res := reg.Execute(context.Background(), Call{ID: "1", ToolName: "late", Args: raw(`{}`)})
	require.NoError(t, res.Err)
	assert.Equal(t, 1, count)
}

func TestRegistry_Use_RewrapsWithoutDoubleWrapping(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	tool, err := NewDynamicTool("echo", "echoes", map[string]any{"type": "object"}, echoHandler)
	require.NoError(t, err)
	reg.Register(tool)

	var count int
	var order []string
	reg.Use(countingMiddleware(&count, &order, "a"))
	reg.Use(countingMiddleware(&count, &order, "b"))

	res := reg.Execute(context.Background(), Call{ID: "1", ToolName: "echo", Args: raw(`{}`)})
	require.NoError(t, res.Err)
	// the second Use replaced the chain, it did not stack on the first
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"b"}, order)
}

func TestWithLogging(t *testing.T) {
	t.Parallel()
	tool, err := NewDynamicTool("echo", "echoes", map[string]any{"type": "object"}, echoHandler)
	require.NoError(t, err)
	wrapped := WithLogging(discardLogger())(tool)
	assert.Equal(t, "echo", wrapped.Name())
	data, err := wrapped.Execute(context.Background(), raw(`{"a":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))
}

func TestWithRecovery(t *testing.T) {
	t.Parallel()
	tool, err := NewDynamicTool("boom", "panics", map[string]any{"type": "object"},
		func(_ context.Context, _ []byte) ([]byte, error) { panic("middleware should catch this") })
	require.NoError(t, err)
	wrapped := WithRecovery()(tool)
	_, err = wrapped.Execute(context.Background(), raw(`{}`))
	require.Error(t, err)
	assert.True(t, IsSystemError(err))
}

func TestWithTimeoutMiddleware(t *testing.T) {
	t.Parallel()
	tool, err := NewDynamicTool("slow", "sleeps", map[string]any{"type": "object"},
		func(ctx context.Context, _ []byte) ([]byte, error) {
			select {
			case <-time.After(5 * time.Second):
				return raw(`{}`), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
	require.NoError(t, err)
	wrapped := WithTimeoutMiddleware(20 * time.Millisecond)(tool)

	tm, ok := wrapped.(ToolMetadata)
	require.True(t, ok)
	assert.Equal(t, 20*time.Millisecond, tm.Timeout())

	start := time.Now()
	_, err = wrapped.Execute(context.Background(), raw(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestToolBase_DelegatesMetadata(t *testing.T) {
	t.Parallel()
	type args struct {
		X int `json:"x,omitempty"`
	}
	tool, err := NewTool("meta", "m", func(_ context.Context, a args) (int, error) { return a.X, nil },
		WithTimeout(time.Second), WithTags("t1"), WithVersion("2.0"), WithDangerous(), WithStrict())
	require.NoError(t, err)
	wrapped := WithLogging(discardLogger())(tool)
	tm, ok := wrapped.(ToolMetadata)
	require.True(t, ok)
	assert.Equal(t, time.Second, tm.Timeout())
	assert.Equal(t, []string{"t1"}, tm.Tags())
	assert.Equal(t, "2.0", tm.Version())
	assert.True(t, tm.IsDangerous())
	assert.True(t, tm.IsStrict())
}
