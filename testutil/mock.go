// Package testutil provides test helpers for toolbridge (e.g. MockTool).
package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"toolbridge"
)

// MockTool is a configurable Tool implementation for tests. Calls counts how
// many times Execute ran, so tests can assert a handler was never invoked.
type MockTool struct {
	NameVal   string
	DescVal   string
	ParamsVal map[string]any
	StrictVal bool
	ExecuteFn func(ctx context.Context, args []byte) ([]byte, error)

	calls atomic.Int64
}

// Name returns the tool name.
func (m *MockTool) Name() string {
	if m.NameVal != "" {
		return m.NameVal
	}
	return "mock"
}

// Description returns the tool description.
func (m *MockTool) Description() string {
	return m.DescVal
}

// Parameters returns the parameters schema (or an open object schema).
func (m *MockTool) Parameters() map[string]any {
	if m.ParamsVal != nil {
		return m.ParamsVal
	}
	return map[string]any{"type": "object"}
}

// Execute runs ExecuteFn if set, otherwise returns an empty object.
func (m *MockTool) Execute(ctx context.Context, args []byte) ([]byte, error) {
	m.calls.Add(1)
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, args)
	}
	return []byte("{}"), nil
}

// Calls reports how many times Execute has run.
func (m *MockTool) Calls() int {
	return int(m.calls.Load())
}

// ToolMetadata implementation so tests can exercise strict descriptors.
func (m *MockTool) Timeout() time.Duration { return 0 }
func (m *MockTool) Tags() []string         { return nil }
func (m *MockTool) Version() string        { return "" }
func (m *MockTool) IsDangerous() bool      { return false }
func (m *MockTool) IsStrict() bool         { return m.StrictVal }

// Ensure MockTool implements Tool and ToolMetadata.
var (
	_ toolbridge.Tool         = (*MockTool)(nil)
	_ toolbridge.ToolMetadata = (*MockTool)(nil)
)

// ObjectSchema builds a JSON Schema for an object with the given property
// types and required names, the shape most mock tools need.
func ObjectSchema(props map[string]string, required ...string) map[string]any {
	properties := make(map[string]any, len(props))
	for name, typ := range props {
		properties[name] = map[string]any{"type": typ}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		req := make([]any, len(required))
		for i, name := range required {
			req[i] = name
		}
		schema["required"] = req
	}
	return schema
}
