package toolbridge

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientError(t *testing.T) {
	t.Parallel()
	err := &ClientError{Reason: "missing parameter: key", Err: ErrValidation}
	assert.Equal(t, "invalid tool call: missing parameter: key", err.Error())
	assert.ErrorIs(t, err, ErrValidation)
	assert.True(t, IsClientError(err))
	assert.False(t, IsSystemError(err))

	wrapped := fmt.Errorf("dispatch: %w", err)
	assert.True(t, IsClientError(wrapped))
	var ce *ClientError
	require.ErrorAs(t, wrapped, &ce)
	assert.Equal(t, "missing parameter: key", ce.Reason)
}

func TestSystemError(t *testing.T) {
	t.Parallel()
	inner := errors.New("connection pool exhausted")
	err := &SystemError{Err: inner}
	assert.Equal(t, "internal system error during tool execution", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.True(t, IsSystemError(err))
	assert.False(t, IsClientError(err))
}

func TestFailureKind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"unknown tool", &ClientError{Reason: "unknown tool: x", Err: ErrToolNotFound}, "unknown_tool"},
		{"incomplete", &ClientError{Reason: "unterminated", Err: ErrIncompleteCall}, "incomplete_call"},
		{"timeout", ErrTimeout, "timeout"},
		{"validation", &ClientError{Reason: "missing parameter: k", Err: ErrValidation}, "invalid_parameters"},
		{"bare client error", &ClientError{Reason: "bad payload"}, "invalid_arguments"},
		{"system", &SystemError{Err: errors.New("x")}, "system_error"},
		{"handler error", errors.New("file not found"), "tool_execution_error"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FailureKind(tt.err))
		})
	}
}

func TestFailureMessage(t *testing.T) {
	t.Parallel()
	assert.Empty(t, FailureMessage(nil))
	assert.Equal(t, "invalid tool call: bad payload", FailureMessage(&ClientError{Reason: "bad payload"}))
	assert.Equal(t, "file not found", FailureMessage(errors.New("file not found")))
	// system detail never reaches the model
	assert.Equal(t, "internal system error during tool execution",
		FailureMessage(&SystemError{Err: errors.New("nil map write in cache")}))
}

func TestResult_Failed(t *testing.T) {
	t.Parallel()
	assert.False(t, Result{Data: raw(`{}`)}.Failed())
	assert.True(t, Result{Err: ErrTimeout}.Failed())
}
