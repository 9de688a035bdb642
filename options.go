package toolbridge

import (
	"context"
	"log/slog"
	"time"
)

// toolOptions hold optional tool settings (timeout, strict, tags, etc.).
type toolOptions struct {
	strict    bool
	timeout   time.Duration
	tags      []string
	version   string
	dangerous bool
}

// ToolOption configures a tool (e.g. WithStrict, WithTimeout).
type ToolOption func(*toolOptions)

// WithStrict sets strict mode: the generated schema gets
// additionalProperties: false with all properties required, and validation
// rejects undeclared arguments instead of passing them through.
func WithStrict() ToolOption {
	return func(o *toolOptions) {
		o.strict = true
	}
}

// WithTimeout sets a per-tool execution timeout, overriding the registry
// default for this tool.
func WithTimeout(d time.Duration) ToolOption {
	return func(o *toolOptions) {
		o.timeout = d
	}
}

// WithTags sets tool tags (metadata for discovery/orchestration).
func WithTags(tags ...string) ToolOption {
	return func(o *toolOptions) {
		o.tags = tags
	}
}

// WithVersion sets the tool version.
func WithVersion(version string) ToolOption {
	return func(o *toolOptions) {
		o.version = version
	}
}

// WithDangerous marks the tool as dangerous (orchestrator may require
// confirmation).
func WithDangerous() ToolOption {
	return func(o *toolOptions) {
		o.dangerous = true
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	timeout        time.Duration
	maxConcurrency int
	recoverPanics  bool
	onBefore       func(context.Context, Call)
	onAfter        func(context.Context, Call, ExecutionSummary, time.Duration)
}

// WithDefaultTimeout sets the default execution timeout for tools.
func WithDefaultTimeout(d time.Duration) RegistryOption {
	return func(o *registryOptions) {
		o.timeout = d
	}
}

// WithMaxConcurrency limits concurrent tool executions (semaphore).
// Pass 0 or negative to disable the semaphore (unlimited concurrency).
func WithMaxConcurrency(n int) RegistryOption {
	return func(o *registryOptions) {
		o.maxConcurrency = n
	}
}

// WithRecoverPanics enables panic recovery in Execute (returns SystemError).
func WithRecoverPanics(enable bool) RegistryOption {
	return func(o *registryOptions) {
		o.recoverPanics = enable
	}
}

// WithOnBeforeExecute sets a hook called before each tool execution.
func WithOnBeforeExecute(fn func(context.Context, Call)) RegistryOption {
	return func(o *registryOptions) {
		o.onBefore = fn
	}
}

// WithOnAfterExecute sets a hook called after each tool execution.
func WithOnAfterExecute(fn func(context.Context, Call, ExecutionSummary, time.Duration)) RegistryOption {
	return func(o *registryOptions) {
		o.onAfter = fn
	}
}

// TurnOption configures a Turn.
type TurnOption func(*turnOptions)

type turnOptions struct {
	grammar      Grammar
	capability   Capability
	enableNative bool
	enableTagged bool
	taggedSet    bool
	parallel     bool
	logger       *slog.Logger
}

func defaultTurnOptions() turnOptions {
	return turnOptions{
		grammar:      DefaultGrammar,
		capability:   CapTagged,
		enableNative: true,
		enableTagged: true,
		logger:       slog.Default(),
	}
}

// WithGrammar sets the tagged-text grammar for this turn. The tag names must
// match the convention the prompt template teaches the model.
func WithGrammar(g Grammar) TurnOption {
	return func(o *turnOptions) {
		o.grammar = g
	}
}

// WithCapability records which encoding the model reliably supports. For
// CapNative models, tagged detection is disabled unless WithTaggedCalls
// explicitly re-enables it.
func WithCapability(c Capability) TurnOption {
	return func(o *turnOptions) {
		o.capability = c
	}
}

// WithNativeCalls enables or disables the native encoding for this turn.
func WithNativeCalls(enable bool) TurnOption {
	return func(o *turnOptions) {
		o.enableNative = enable
	}
}

// WithTaggedCalls enables or disables tagged-text detection for this turn.
func WithTaggedCalls(enable bool) TurnOption {
	return func(o *turnOptions) {
		o.enableTagged = enable
		o.taggedSet = true
	}
}

// WithParallelDispatch allows independent calls in one batch to execute
// concurrently. Results are still reported in original call order.
func WithParallelDispatch() TurnOption {
	return func(o *turnOptions) {
		o.parallel = true
	}
}

// WithTurnLogger sets the logger for turn diagnostics (discarded assemblies,
// duplicate suppression). Defaults to slog.Default().
func WithTurnLogger(logger *slog.Logger) TurnOption {
	return func(o *turnOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// DispatcherOption configures a standalone Dispatcher.
type DispatcherOption func(*dispatcherOptions)

type dispatcherOptions struct {
	logger   *slog.Logger
	parallel bool
}

// WithDispatchLogger sets the logger for dispatcher diagnostics.
func WithDispatchLogger(logger *slog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithParallelExecution allows calls in one batch to execute concurrently
// while preserving result order.
func WithParallelExecution() DispatcherOption {
	return func(o *dispatcherOptions) {
		o.parallel = true
	}
}

func withParallel(enable bool) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.parallel = enable
	}
}
