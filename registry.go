package toolbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Registry holds tools and executes them with timeout, semaphore, and optional
// panic recovery. Lookup is safe for concurrent use from many turns; the
// registry is the only state this package shares across turns, and this
// subsystem only reads it.
type Registry struct {
	tools       map[string]Tool // wrapped with middlewares, used by Execute
	rawTools    map[string]Tool // unwrapped, used by Use() to re-apply middlewares
	compiled    map[string]*jsonschema.Schema
	sem         chan struct{}
	opts        registryOptions
	done        chan struct{}
	running     sync.WaitGroup
	mu          sync.Mutex
	middlewares []Middleware
}

// NewRegistry creates a Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := registryOptions{
		timeout:        5 * time.Second,
		maxConcurrency: 10,
		recoverPanics:  true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	var sem chan struct{}
	if o.maxConcurrency > 0 {
		sem = make(chan struct{}, o.maxConcurrency)
	}
	return &Registry{
		tools:    make(map[string]Tool),
		rawTools: make(map[string]Tool),
		compiled: make(map[string]*jsonschema.Schema),
		sem:      sem,
		opts:     o,
		done:     make(chan struct{}),
	}
}

// Register adds a tool. Stored middlewares (see Use) are applied before
// registration; a tool with the same name replaces the previous one. The
// tool's parameter schema is compiled eagerly for validation; a schema that
// does not compile leaves full-schema validation off for that tool (the
// explicit per-parameter checks in Validate still apply).
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	r.rawTools[name] = t
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		t = r.middlewares[i](t)
	}
	r.tools[name] = t
	if sch, err := compileSchemaMap(t.Parameters()); err == nil {
		r.compiled[name] = sch
	} else {
		delete(r.compiled, name)
	}
}

// Lookup returns the tool with the given name (after middlewares are
// applied), or (nil, false) if not found.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns all registered tools (e.g. for exporting definitions to LLM
// providers), sorted by name for deterministic order.
func (r *Registry) Tools() []Tool {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name])
	}
	return out
}

func (r *Registry) compiledSchema(name string) *jsonschema.Schema {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.compiled[name]
}

// Execute runs one already-validated call and returns its Result. The call's
// source format is carried onto the Result so the encoder can answer in kind.
// Handler errors are normal outcomes: they come back inside the Result, never
// as a panic or a dropped call.
func (r *Registry) Execute(ctx context.Context, call Call) (res Result) {
	res = Result{CallID: call.ID, ToolName: call.ToolName, Source: call.Source}

	r.mu.Lock()
	select {
	case <-r.done:
		r.mu.Unlock()
		res.Err = ErrShutdown
		return res
	default:
	}
	tool, ok := r.tools[call.ToolName]
	if !ok {
		r.mu.Unlock()
		res.Err = &ClientError{Reason: "unknown tool: " + call.ToolName, Err: ErrToolNotFound}
		return res
	}
	r.running.Add(1)
	r.mu.Unlock()
	defer r.running.Done()

	if err := r.acquireSemaphore(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTimeout
		}
		res.Err = err
		return res
	}
	defer r.releaseSemaphore()

	timeout := r.opts.timeout
	if tm, ok := tool.(ToolMetadata); ok && tm.Timeout() > 0 {
		timeout = tm.Timeout()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if r.opts.onBefore != nil {
		r.opts.onBefore(ctx, call)
	}
	start := time.Now()
	// The after-execution hook always runs with the final summary. The
	// recover defer is registered after it so it runs first on panic and sets
	// the error before the hook observes it.
	defer func() {
		if r.opts.onAfter != nil {
			r.opts.onAfter(ctx, call, ExecutionSummary{
				CallID:    call.ID,
				ToolName:  call.ToolName,
				Error:     res.Err,
				ResultLen: len(res.Data),
			}, time.Since(start))
		}
	}()
	if r.opts.recoverPanics {
		defer func() {
			if p := recover(); p != nil {
				res.Data = nil
				res.Err = &SystemError{Err: &panicError{p: p}}
			}
		}()
	}

	data, err := tool.Execute(ctx, call.Args)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTimeout
		}
		res.Err = err
		return res
	}
	res.Data = data
	return res
}

func (r *Registry) acquireSemaphore(ctx context.Context) error {
	if r.sem == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) releaseSemaphore() {
	if r.sem != nil {
		<-r.sem
	}
}

// Shutdown closes the registry for new calls and waits for in-flight
// executions or ctx to cancel.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	select {
	case <-r.done:
		r.mu.Unlock()
		return nil
	default:
		close(r.done)
	}
	r.mu.Unlock()
	done := make(chan struct{})
	go func() {
		r.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// compileSchemaMap compiles a JSON Schema map into a validator. The map is
// not mutated.
func compileSchemaMap(schemaMap map[string]any) (*jsonschema.Schema, error) {
	if schemaMap == nil {
		return nil, errors.New("nil schema")
	}
	data, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}
