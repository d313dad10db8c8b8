package switchboard

import (
	"log/slog"
	"time"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the checkpoint store (default: in-memory).
func WithStore(store ports.CheckpointStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables distributed locking of thread state and run leases.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls merge.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithMaxSteps bounds the number of node invocations per run.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// WithCheckpointEveryStep toggles the commit after each step (default true).
// The final commit at the end of a run always happens.
func WithCheckpointEveryStep(enabled bool) Option {
	return func(e *Engine) {
		e.checkpointEveryStep = enabled
	}
}

// WithNamespace sets the UUID namespace thread IDs are derived in.
func WithNamespace(ns uuid.UUID) Option {
	return func(e *Engine) {
		e.namespace = ns
	}
}

// WithResumeNode sets where Resume re-enters a thread (default: supervisor, else the entry).
func WithResumeNode(name string) Option {
	return func(e *Engine) {
		e.resumeNode = name
	}
}

// WithEventSink mirrors every run event to sink. Sink failures are logged only.
func WithEventSink(sink ports.EventSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithMaxRequestSize overrides the request size limit in bytes.
func WithMaxRequestSize(n int) Option {
	return func(e *Engine) {
		e.maxRequest = n
	}
}

// WithSessionTTLs bounds distributed store locks and run leases. Zero keeps the default.
func WithSessionTTLs(lock, lease time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = lock
		e.leaseTTL = lease
	}
}
