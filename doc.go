// Package toolbridge normalizes LLM tool calls across incompatible wire formats
// and dispatches them against a registry of executable tools.
//
// # Overview
//
// Models emit tool calls in different shapes: a native structured channel
// (OpenAI-style function call objects, possibly streamed as deltas) or a
// tagged-text convention embedded in the free-text response. This package
// detects the format, assembles streamed fragments into complete calls,
// converts every shape into one canonical Call, validates arguments against
// the registered tool's schema, executes each call exactly once, and encodes
// the result back in the format the model expects.
//
// Pipeline: model output → Turn.Process / Turn.ProcessNative → Call →
// Registry.Validate → Dispatcher → Result → Encoder → transcript.
//
// # Key concepts
//
//   - One canonical form: every supported encoding becomes a Call before
//     anything executes, and every Result is re-encoded in the call's source
//     format so multi-turn transcripts stay self-consistent.
//   - At most once: a call id produces exactly one Result per turn; duplicate
//     observations are suppressed and logged, never re-executed.
//   - Self-correction: parse and validation failures become model-visible
//     failure results (ClientError messages), never dropped calls or raw
//     stack traces.
//   - Per-turn state: all streaming assembly and de-duplication state lives
//     in a Turn; concurrent conversations never share buffers.
//
// See Call, Result, Tool, Registry, Turn, and Dispatcher for the core types,
// and NewTool / NewRegistry / NewTurn for setup.
//
// # Example
//
//	type Args struct { Key string `json:"key"` }
//	type Out  struct { Value string `json:"value"` }
//	lookup, err := toolbridge.NewTool("lookup", "Look up a key", func(_ context.Context, a Args) (Out, error) {
//	    return Out{Value: "alpha:" + a.Key}, nil
//	})
//	if err != nil { ... }
//	reg := toolbridge.NewRegistry()
//	reg.Register(lookup)
//	turn := toolbridge.NewTurn(reg)
//	segs := turn.Process(`<calls><invoke name="lookup"><param name="key">alpha</param></invoke></calls>`)
//	segs = append(segs, turn.Finish()...)
//	blocks := turn.ExecuteAndEncode(ctx, toolbridge.Calls(segs))
package toolbridge
