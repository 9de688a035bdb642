package toolbridge

import (
	"context"
	"encoding/json"
)

// Capability is the per-model flag for which call encoding the model reliably
// supports. It picks the encoder's target format and decides whether tagged
// detection runs at all for that model.
type Capability int

const (
	// CapTagged models call through the tag-delimited text convention.
	CapTagged Capability = iota
	// CapNative models call through the structured channel; tagged-looking
	// text from them is treated as prose unless explicitly re-enabled.
	CapNative
)

// Turn is the per-conversation-turn context. It owns all mutable state of the
// pipeline: streaming assembly buffers and the executed-call-id set. Create
// one at turn start, discard it at turn end; concurrent turns over the same
// Registry are independent.
type Turn struct {
	reg  *Registry
	opts turnOptions
	asm  *assembler
	disp *Dispatcher
	enc  *Encoder

	nativeSeen bool
}

// NewTurn creates the context for one model turn over the given registry.
func NewTurn(reg *Registry, opts ...TurnOption) *Turn {
	o := defaultTurnOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.capability == CapNative && !o.taggedSet {
		o.enableTagged = false
	}
	return &Turn{
		reg:  reg,
		opts: o,
		asm:  newAssembler(o.grammar, reg, o.logger),
		disp: NewDispatcher(reg, WithDispatchLogger(o.logger), withParallel(o.parallel)),
		enc:  NewEncoder(o.grammar),
	}
}

// Process consumes one fragment of the model's text output and returns
// displayable prose segments immediately, plus any calls whose blocks
// terminated inside this fragment. When tagged detection is off for this
// model, or a native call has already been observed this turn (native is
// authoritative; text syntax is then inert prose, so the same action never
// executes twice), the fragment passes through unchanged.
func (t *Turn) Process(fragment string) []Segment {
	if !t.opts.enableTagged || t.nativeSeen {
		if fragment == "" {
			return nil
		}
		return []Segment{{Text: fragment}}
	}
	return t.asm.feedText(fragment)
}

// ProcessNative consumes the structured call payload delivered out-of-band
// with the response: one call object or an array of them. Calls that cannot
// be normalized come back as failure segments for those calls only.
func (t *Turn) ProcessNative(raw json.RawMessage) []Segment {
	if !t.opts.enableNative {
		t.opts.logger.Warn("native call payload ignored: native encoding disabled for this turn")
		return nil
	}
	t.nativeSeen = true
	calls, failures, err := NormalizeNative(raw, t.reg)
	if err != nil {
		t.opts.logger.Warn("unparseable native call payload", "error", err)
		return []Segment{{Failure: &Result{CallID: newCallID(), Source: FormatNative, Err: err}}}
	}
	segs := make([]Segment, 0, len(calls)+len(failures))
	for i := range calls {
		segs = append(segs, Segment{Call: &calls[i]})
	}
	for i := range failures {
		segs = append(segs, Segment{Failure: &failures[i]})
	}
	return segs
}

// ProcessNativeDelta consumes one increment of a streamed native call.
// Completed calls are emitted in the order their finish flag is observed,
// even when the stream interleaves several indexes.
func (t *Turn) ProcessNativeDelta(d NativeDelta) []Segment {
	if !t.opts.enableNative {
		return nil
	}
	t.nativeSeen = true
	return t.asm.feedNative(d)
}

// Finish flushes the turn at end of model output. Held-back prose is
// returned; assemblies that never reached their termination signal are
// discarded with a diagnostic warning (there is no legible call to answer).
func (t *Turn) Finish() []Segment {
	return t.asm.finish()
}

// Dispatch validates and executes calls with this turn's de-duplication set
// and returns one Result per fresh call, in call order.
func (t *Turn) Dispatch(ctx context.Context, calls []Call) []Result {
	return t.disp.Dispatch(ctx, calls)
}

// ExecuteAndEncode is the batch entry point: validate, execute exactly once,
// and encode every result in its call's source format, preserving call order.
func (t *Turn) ExecuteAndEncode(ctx context.Context, calls []Call) []string {
	results := t.disp.Dispatch(ctx, calls)
	return t.EncodeResults(results)
}

// EncodeResults serializes results (including failure results produced during
// assembly) into transcript blocks, one per result.
func (t *Turn) EncodeResults(results []Result) []string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		block, err := t.enc.EncodeResult(r)
		if err != nil {
			t.opts.logger.Error("failed to encode result", "call_id", r.CallID, "error", err)
			continue
		}
		blocks = append(blocks, block)
	}
	return blocks
}

// EncodeCallsForModel re-serializes normalized calls into the convention this
// turn's model expects, for transcript replay or cross-model handoff.
func (t *Turn) EncodeCallsForModel(calls []Call) (string, error) {
	target := FormatTagged
	if t.opts.capability == CapNative {
		target = FormatNative
	}
	return t.enc.EncodeCalls(target, calls)
}
