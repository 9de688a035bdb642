package toolbridge

import (
	"context"
	"encoding/json"
	"time"
)

// SourceFormat identifies the wire encoding a call arrived in. It is recorded
// on every Call so the matching Result can be re-encoded the same way.
type SourceFormat int

const (
	// FormatNative is the structured channel delivered alongside the text
	// response (OpenAI-style function call objects).
	FormatNative SourceFormat = iota
	// FormatTagged is the tag-delimited convention embedded in the model's
	// free-text response.
	FormatTagged
)

func (f SourceFormat) String() string {
	switch f {
	case FormatNative:
		return "native"
	case FormatTagged:
		return "tagged"
	default:
		return "unknown"
	}
}

// Call is the canonical representation of one tool invocation, regardless of
// the encoding that produced it.
type Call struct {
	// ID is unique within one model turn. Generated (uuid) when the source
	// encoding did not supply one.
	ID string
	// ToolName must match a registered tool for the call to execute.
	ToolName string
	// Args is the argument payload as a JSON object. For tagged-text calls
	// the object keys preserve the document order of the param blocks.
	Args json.RawMessage
	// Source is the encoding that produced this call.
	Source SourceFormat
	// Raw is an opaque copy of the original fragment, kept for diagnostics
	// only. Nothing downstream reads it.
	Raw string
	// Unknown lists argument names that are not declared in the registered
	// tool's schema. Such arguments are preserved, not dropped; validation
	// decides whether they are fatal (strict tools reject them).
	Unknown []string
}

// Result is the outcome of one Call. Err is nil on success; on failure it is
// a ClientError, SystemError, or one of the package sentinels, and FailureKind
// maps it to the stable tag encoded back to the model.
type Result struct {
	CallID   string
	ToolName string
	Source   SourceFormat
	// Data is the success payload (JSON). Nil when Err is set.
	Data json.RawMessage
	Err  error
}

// Failed reports whether the call produced a failure outcome.
func (r Result) Failed() bool { return r.Err != nil }

// Tool is the contract for an LLM-callable instrument. It is provider-agnostic
// (no knowledge of OpenAI, Anthropic, or any wire format).
type Tool interface {
	Name() string
	Description() string
	// Parameters returns a valid JSON Schema as a map (compatible with LLM
	// tool definitions). The dispatcher validates call arguments against it
	// before Execute runs.
	Parameters() map[string]any
	// Execute runs the tool with validated JSON arguments and returns the
	// result payload as JSON, or an error (ClientError for model-correctable
	// input problems, anything else is wrapped as SystemError).
	Execute(ctx context.Context, argsJSON []byte) ([]byte, error)
}

// ToolMetadata is implemented by tools created with NewTool and exposes
// optional per-tool settings. Registry uses Timeout() to override the default
// execution timeout; Validate uses IsStrict() to reject undeclared arguments.
type ToolMetadata interface {
	Timeout() time.Duration
	Tags() []string
	Version() string
	IsDangerous() bool
	IsStrict() bool
}

// Segment is one unit of processed model output: either a run of prose to
// display, a completed normalized call, or a failure result for a call that
// terminated malformed (reported back to the model, never executed).
type Segment struct {
	Text    string
	Call    *Call
	Failure *Result
}

// Calls extracts the completed calls from a slice of segments, in order.
func Calls(segs []Segment) []Call {
	var out []Call
	for _, s := range segs {
		if s.Call != nil {
			out = append(out, *s.Call)
		}
	}
	return out
}

// Failures extracts the failure results from a slice of segments, in order.
func Failures(segs []Segment) []Result {
	var out []Result
	for _, s := range segs {
		if s.Failure != nil {
			out = append(out, *s.Failure)
		}
	}
	return out
}

// ExecutionSummary is passed to the after-execution hook (WithOnAfterExecute)
// when a tool execution finishes, successfully or not.
type ExecutionSummary struct {
	CallID    string
	ToolName  string
	Error     error
	ResultLen int
}
