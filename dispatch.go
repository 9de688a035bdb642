package toolbridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Dispatcher executes normalized calls exactly once each and produces one
// Result per call that reaches it, validation failures included. It is scoped
// to one turn: the de-duplication set must never outlive or be shared across
// turns.
type Dispatcher struct {
	reg      *Registry
	log      *slog.Logger
	parallel bool
	mu       sync.Mutex
	seen     map[string]struct{}
}

// NewDispatcher creates a per-turn dispatcher over the given registry.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	o := dispatcherOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Dispatcher{
		reg:      reg,
		log:      o.logger,
		parallel: o.parallel,
		seen:     make(map[string]struct{}),
	}
}

// Dispatch validates and executes calls in the order given and returns their
// results in that same order, regardless of completion timing.
//
// A call id that already produced a Result this turn is suppressed (no-op,
// logged), even when the duplicate arrives in the same batch: upstream
// detection may observe the same raw call twice, and execution must happen at
// most once. Validation failures become failure results without the handler
// ever running. When ctx is cancelled mid-batch, calls without a result yet
// are abandoned without blocking; no results are fabricated for them.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []Call) []Result {
	fresh := make([]Call, 0, len(calls))
	d.mu.Lock()
	for _, call := range calls {
		if _, dup := d.seen[call.ID]; dup {
			d.log.Warn("duplicate call suppressed", "call_id", call.ID, "tool", call.ToolName)
			continue
		}
		d.seen[call.ID] = struct{}{}
		fresh = append(fresh, call)
	}
	d.mu.Unlock()

	if d.parallel {
		return d.runParallel(ctx, fresh)
	}
	return d.runSequential(ctx, fresh)
}

func (d *Dispatcher) runSequential(ctx context.Context, calls []Call) []Result {
	results := make([]Result, 0, len(calls))
	for i, call := range calls {
		if ctx.Err() != nil {
			d.log.Warn("turn cancelled, abandoning remaining calls", "abandoned", len(calls)-i)
			break
		}
		res, abandoned := d.runOne(ctx, call)
		if abandoned {
			d.log.Warn("turn cancelled, abandoning in-flight call", "call_id", call.ID)
			break
		}
		results = append(results, res)
	}
	return results
}

// runParallel executes independent calls concurrently but reports results in
// the original call order. Cancellation drops the abandoned tail the same way
// the sequential path does.
func (d *Dispatcher) runParallel(ctx context.Context, calls []Call) []Result {
	type slot struct {
		res       Result
		abandoned bool
	}
	slots := make([]slot, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call Call) {
			defer wg.Done()
			slots[i].res, slots[i].abandoned = d.runOne(ctx, call)
		}(i, call)
	}
	wg.Wait()
	results := make([]Result, 0, len(calls))
	for i := range slots {
		if slots[i].abandoned {
			d.log.Warn("turn cancelled, abandoning in-flight call", "call_id", calls[i].ID)
			continue
		}
		results = append(results, slots[i].res)
	}
	return results
}

// runOne validates then executes a single call. abandoned is true when the
// surrounding turn was cancelled and no result should be reported.
func (d *Dispatcher) runOne(ctx context.Context, call Call) (Result, bool) {
	validated, err := d.reg.Validate(call)
	if err != nil {
		return Result{CallID: call.ID, ToolName: call.ToolName, Source: call.Source, Err: err}, false
	}
	res := d.reg.Execute(ctx, validated)
	if errors.Is(res.Err, context.Canceled) && ctx.Err() != nil {
		return Result{}, true
	}
	return res, false
}
