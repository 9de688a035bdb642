package toolbridge

import (
	"log/slog"
	"strings"
)

// NativeDelta is one increment of a streamed native tool call. Providers that
// stream function calls deliver the name and the argument JSON in pieces,
// keyed by a positional index; the id, when the provider supplies one, arrives
// on an early fragment. Done is the termination signal for that index.
type NativeDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
	Done      bool
}

// pendingAssembly is the in-flight state of one streamed native call. The
// name and argument buffers are independent: a provider may send the full
// name before any argument bytes, or interleave them.
type pendingAssembly struct {
	id   string
	name strings.Builder
	args strings.Builder
	done bool
}

// assembler turns incremental model output into completed calls without
// blocking prose passthrough. All state is owned by one Turn: concurrent
// turns never share buffers. Tagged text goes through the resumable scanner;
// native deltas accumulate per index, so interleaved calls (B opening before
// A finishes) assemble independently. Completed calls are emitted in the
// order their termination signal is observed.
type assembler struct {
	reg     *Registry
	log     *slog.Logger
	sc      *scanner
	pending map[int]*pendingAssembly
}

func newAssembler(g Grammar, reg *Registry, log *slog.Logger) *assembler {
	return &assembler{
		reg:     reg,
		log:     log,
		sc:      newScanner(g),
		pending: make(map[int]*pendingAssembly),
	}
}

// feedText processes one text fragment. Prose comes back immediately for
// display; calls come back once their block terminates. A block that
// terminates malformed mid-stream becomes a failure segment (the terminator
// was observed, so there is a legible call to answer).
func (a *assembler) feedText(fragment string) []Segment {
	events := a.sc.feed(fragment)
	segs := make([]Segment, 0, len(events))
	for _, ev := range events {
		segs = append(segs, promoteEvent(ev, a.reg))
	}
	return segs
}

// feedNative processes one native streaming delta. The call for an index is
// emitted exactly once, when its Done flag is observed.
func (a *assembler) feedNative(d NativeDelta) []Segment {
	p, ok := a.pending[d.Index]
	if !ok {
		p = &pendingAssembly{}
		a.pending[d.Index] = p
	}
	if p.done {
		// duplicate termination for an index already promoted
		a.log.Warn("native delta after termination ignored", "index", d.Index, "call_id", p.id)
		return nil
	}
	if d.ID != "" {
		p.id = d.ID
	}
	p.name.WriteString(d.Name)
	p.args.WriteString(d.Arguments)
	if !d.Done {
		return nil
	}
	p.done = true
	return []Segment{a.promoteNative(p)}
}

func (a *assembler) promoteNative(p *pendingAssembly) Segment {
	id := p.id
	if id == "" {
		id = newCallID()
	}
	name := p.name.String()
	raw := p.args.String()
	call := Call{
		ID:       id,
		ToolName: name,
		Source:   FormatNative,
		Raw:      raw,
	}
	if name == "" {
		return Segment{Failure: &Result{
			CallID: id, Source: FormatNative,
			Err: &ClientError{Reason: "native call has no tool name"},
		}}
	}
	if raw == "" {
		raw = "{}"
	}
	obj, err := argumentsObject([]byte(raw))
	if err != nil {
		return Segment{Failure: &Result{
			CallID: id, ToolName: name, Source: FormatNative, Err: err,
		}}
	}
	call.Args = obj
	call.Unknown = undeclaredArguments(a.reg, name, obj)
	return Segment{Call: &call}
}

// finish flushes the assembler at end of turn. Held-back prose is returned;
// assemblies that never reached a termination signal are discarded with a
// diagnostic warning, not executed and not reported to the model (the model
// was mid-call, so no call was ever legible).
func (a *assembler) finish() []Segment {
	var segs []Segment
	for _, ev := range a.sc.finish() {
		if ev.call != nil && ev.call.broken != "" {
			a.log.Warn("discarding incomplete tagged call at end of turn",
				"tool", ev.call.name, "reason", ev.call.broken)
			continue
		}
		segs = append(segs, promoteEvent(ev, a.reg))
	}
	for idx, p := range a.pending {
		if !p.done {
			a.log.Warn("discarding incomplete native call at end of turn",
				"index", idx, "tool", p.name.String())
		}
	}
	a.pending = make(map[int]*pendingAssembly)
	return segs
}
