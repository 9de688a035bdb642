package toolbridge

import (
	"errors"
	"fmt"
)

// Sentinel errors for toolbridge. Use errors.Is to check.
var (
	ErrToolNotFound   = errors.New("tool not found")
	ErrTimeout        = errors.New("tool execution timeout")
	ErrValidation     = errors.New("validation failed")
	ErrShutdown       = errors.New("registry is shutting down")
	ErrIncompleteCall = errors.New("incomplete call")
)

// ClientError is an error that should be sent back to the LLM for
// self-correction (malformed argument JSON, schema violation, unknown tool,
// unterminated call block). Do not expose stack traces or internal details.
// Err optionally wraps a sentinel (e.g. ErrValidation) for errors.Is/errors.As.
type ClientError struct {
	Reason string
	// Retryable marks failures the orchestrator may retry without changing
	// arguments (e.g. an unterminated block the model can simply re-emit).
	Retryable bool
	Err       error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("invalid tool call: %s", e.Reason)
}

// Unwrap supports errors.Is/errors.As on wrapped chains.
func (e *ClientError) Unwrap() error { return e.Err }

// SystemError represents an internal failure (handler panic, broken schema,
// marshalling bug). The LLM never sees the underlying message.
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string {
	return "internal system error during tool execution"
}

func (e *SystemError) Unwrap() error { return e.Err }

// IsClientError returns true if err is or wraps a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsSystemError returns true if err is or wraps a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// FailureKind maps an execution error to the stable tag encoded back to the
// model. The tags are part of the transcript contract; a capable model uses
// them to decide whether and how to retry.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrToolNotFound):
		return "unknown_tool"
	case errors.Is(err, ErrIncompleteCall):
		return "incomplete_call"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrValidation):
		return "invalid_parameters"
	case IsClientError(err):
		return "invalid_arguments"
	case IsSystemError(err):
		return "system_error"
	default:
		return "tool_execution_error"
	}
}

// FailureMessage returns the model-visible message for an execution error.
// SystemError details stay internal; everything else is considered safe to
// show (tool errors are expected outcomes the model must be able to read).
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsSystemError(err) && !IsClientError(err) {
		return "internal system error during tool execution"
	}
	return err.Error()
}

// wrapJSONParseError returns a ClientError for JSON unmarshal failures so
// parse errors read the same from every entry point.
func wrapJSONParseError(err error) error {
	return &ClientError{Reason: "json parse error: " + err.Error()}
}

// panicError wraps a recovered panic value for SystemError.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}
