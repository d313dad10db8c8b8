package runtime

import (
	"context"
	"log/slog"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxSteps bounds a run when no limit is configured.
const DefaultMaxSteps = 25

// Checkpointer persists the conversation after a step.
// A failure is reported as a warning and the run continues in memory.
type Checkpointer func(ctx context.Context, threadID string, conv domain.Conversation) error

// Option configures the Executor.
type Option func(*Executor)

// WithMaxSteps sets the number of node invocations a run may perform before it fails with
// domain.LoopGuardError. Values below 1 are ignored.
func WithMaxSteps(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithLogger configures the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Executor) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithTracer overrides the OpenTelemetry tracer used for run and node spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithCheckpointer enables a commit after every step.
func WithCheckpointer(fn Checkpointer) Option {
	return func(e *Executor) {
		e.checkpoint = fn
	}
}

// WithEventSink mirrors every event to sink.
func WithEventSink(sink ports.EventSink) Option {
	return func(e *Executor) {
		e.sink = sink
	}
}

// WithEventBuffer sets the capacity of each run's event channel.
func WithEventBuffer(n int) Option {
	return func(e *Executor) {
		if n >= 0 {
			e.buffer = n
		}
	}
}
