package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/graph"
	"github.com/aretw0/switchboard/pkg/ports"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aretw0/switchboard/internal/runtime"

// Input describes where and with what a run starts.
type Input struct {
	// RunID is generated when empty.
	RunID        string
	ThreadID     string
	Conversation domain.Conversation
	// StartAt defaults to the graph entry.
	StartAt string
	// Finalize runs on the worker after the last step, even when the run failed or was
	// cancelled, before the event stream closes. A returned error becomes a warning.
	Finalize func(ctx context.Context, res Result, runErr error) error
}

// Executor drives runs over a fixed graph. It is safe for concurrent use;
// every run has its own worker and state.
type Executor struct {
	graph      *graph.Graph
	maxSteps   int
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	tracer     trace.Tracer
	checkpoint Checkpointer
	sink       ports.EventSink
	buffer     int
}

// New creates an executor for g.
func New(g *graph.Graph, opts ...Option) *Executor {
	e := &Executor{
		graph:    g,
		maxSteps: DefaultMaxSteps,
		logger:   logging.NewNop(),
		tracer:   otel.Tracer(tracerName),
		buffer:   16,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the graph the executor walks.
func (e *Executor) Graph() *graph.Graph { return e.graph }

// MaxSteps returns the configured step budget.
func (e *Executor) MaxSteps() int { return e.maxSteps }

// Start launches a run in its own goroutine and returns immediately.
func (e *Executor) Start(ctx context.Context, in Input) *Run {
	if in.RunID == "" {
		in.RunID = uuid.NewString()
	}
	if in.StartAt == "" {
		in.StartAt = e.graph.Entry()
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{
		id:     in.RunID,
		events: make(chan domain.Event, e.buffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(r.done)
		defer cancel()
		res, err := e.execute(runCtx, r, in)
		r.finish(res, err)
		close(r.events)
	}()

	return r
}

// Invoke runs to completion and returns the result.
func (e *Executor) Invoke(ctx context.Context, in Input) (Result, error) {
	return e.Start(ctx, in).Wait()
}

func (e *Executor) execute(ctx context.Context, r *Run, in Input) (res Result, err error) {
	res = Result{
		RunID:        in.RunID,
		ThreadID:     in.ThreadID,
		Conversation: in.Conversation,
	}
	logger := e.logger.With("run_id", in.RunID, "thread_id", in.ThreadID)

	ctx, span := e.tracer.Start(ctx, "switchboard.run", trace.WithAttributes(
		attribute.String("run.id", in.RunID),
		attribute.String("thread.id", in.ThreadID),
		attribute.String("run.start_at", in.StartAt),
	))
	started := time.Now()
	if e.hooks.OnRunStart != nil {
		e.hooks.OnRunStart(ctx, &domain.RunEvent{RunID: in.RunID, ThreadID: in.ThreadID, StartAt: in.StartAt})
	}
	logger.Debug("Run started", "start_at", in.StartAt, "messages", in.Conversation.Len())

	defer func() {
		if in.Finalize != nil {
			// The run context may already be cancelled; finalization must still happen.
			fctx := context.WithoutCancel(ctx)
			if ferr := in.Finalize(fctx, res, err); ferr != nil {
				res.Warnings = append(res.Warnings, ferr.Error())
				logger.Warn("Run finalization failed", "err", ferr)
				e.publish(ctx, r, e.warning(in, res.Steps, "", ferr))
			}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Debug("Run failed", "steps", res.Steps, "err", err)
		}
		span.SetAttributes(attribute.Int("run.steps", res.Steps), attribute.Bool("run.terminal", res.Terminal))
		span.End()
		if e.hooks.OnRunEnd != nil {
			e.hooks.OnRunEnd(ctx, &domain.RunEvent{
				RunID: in.RunID, ThreadID: in.ThreadID, StartAt: in.StartAt,
				Steps: res.Steps, Duration: time.Since(started), Err: err,
			})
		}
	}()

	current := in.StartAt
	if !e.graph.Has(current) {
		return res, &domain.RoutingError{Next: current}
	}

	for step := 1; ; step++ {
		if cerr := ctx.Err(); cerr != nil {
			return res, fmt.Errorf("run cancelled before %q: %w", current, cerr)
		}
		if step > e.maxSteps {
			return res, &domain.LoopGuardError{Limit: e.maxSteps, Node: current}
		}

		node, _ := e.graph.Node(current)
		cmd, nerr := e.step(ctx, r, in, node, res.Conversation, step)
		if nerr != nil {
			return res, &domain.NodeError{Node: current, Step: step, Err: nerr}
		}
		if cmd.Next == "" || (cmd.Next != domain.End && !e.graph.Has(cmd.Next)) || !e.graph.Allows(current, cmd.Next) {
			return res, &domain.RoutingError{From: current, Next: cmd.Next}
		}
		for _, m := range cmd.Update {
			if verr := m.Validate(); verr != nil {
				return res, &domain.NodeError{Node: current, Step: step, Err: verr}
			}
		}

		res.Conversation = res.Conversation.Append(cmd.Update...)
		res.Path = append(res.Path, current)
		res.Steps = step

		e.publish(ctx, r, domain.Event{
			Type:      domain.EventStep,
			Timestamp: time.Now().UTC(),
			RunID:     in.RunID,
			ThreadID:  in.ThreadID,
			Step:      step,
			Node:      current,
			Next:      cmd.Next,
			Messages:  cmd.Update,
		})
		logger.Debug("Step completed", "step", step, "node", current, "next", cmd.Next)

		if e.checkpoint != nil {
			if cperr := e.checkpoint(ctx, in.ThreadID, res.Conversation); cperr != nil {
				res.Warnings = append(res.Warnings, cperr.Error())
				logger.Warn("Checkpoint failed, continuing in memory", "step", step, "err", cperr)
				e.publish(ctx, r, e.warning(in, step, current, cperr))
			}
		}

		if cmd.Terminal() {
			res.Terminal = true
			return res, nil
		}
		current = cmd.Next
	}
}

// step invokes one node inside its own span, with hooks and a fragment sink attached.
func (e *Executor) step(ctx context.Context, r *Run, in Input, node graph.Node, conv domain.Conversation, step int) (domain.Command, error) {
	name := node.Name()
	ctx, span := e.tracer.Start(ctx, "switchboard.node", trace.WithAttributes(
		attribute.String("node.name", name),
		attribute.String("node.kind", string(graph.KindOf(node))),
		attribute.Int("node.step", step),
	))
	defer span.End()

	ev := &domain.NodeEvent{RunID: in.RunID, ThreadID: in.ThreadID, Step: step, Node: name}
	if e.hooks.OnNodeEnter != nil {
		e.hooks.OnNodeEnter(ctx, ev)
	}

	ctx = graph.WithFragmentSink(ctx, func(fragment string) {
		e.publish(ctx, r, domain.Event{
			Type:      domain.EventFragment,
			Timestamp: time.Now().UTC(),
			RunID:     in.RunID,
			ThreadID:  in.ThreadID,
			Step:      step,
			Node:      name,
			Fragment:  fragment,
		})
	})

	started := time.Now()
	cmd, err := node.Invoke(ctx, conv)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("node.next", cmd.Next))
	}

	if e.hooks.OnNodeLeave != nil {
		leave := *ev
		leave.Next = cmd.Next
		leave.Duration = time.Since(started)
		leave.Err = err
		e.hooks.OnNodeLeave(ctx, &leave)
	}
	return cmd, err
}

func (e *Executor) warning(in Input, step int, node string, err error) domain.Event {
	return domain.Event{
		Type:      domain.EventWarning,
		Timestamp: time.Now().UTC(),
		RunID:     in.RunID,
		ThreadID:  in.ThreadID,
		Step:      step,
		Node:      node,
		Warning:   err.Error(),
	}
}

// publish mirrors ev to the sink and hands it to the run's consumer.
func (e *Executor) publish(ctx context.Context, r *Run, ev domain.Event) {
	if e.sink != nil {
		if err := e.sink.Publish(ctx, ev); err != nil {
			e.logger.Warn("Event sink rejected event", "type", ev.Type, "run_id", ev.RunID, "err", err)
		}
	}
	r.emit(ctx, ev)
}
