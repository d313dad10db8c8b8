package switchboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/internal/runtime"
	"github.com/aretw0/switchboard/pkg/adapters/memory"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/graph"
	"github.com/aretw0/switchboard/pkg/nodes"
	"github.com/aretw0/switchboard/pkg/ports"
	"github.com/aretw0/switchboard/pkg/session"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Run is a handle on a run in progress. See Engine.Stream.
type Run = runtime.Run

// Result is the outcome of a run.
type Result = runtime.Result

// Engine is the high-level entry point for the Switchboard library.
// It binds a graph to a checkpoint store and runs one conversation turn per call.
type Engine struct {
	graph    *graph.Graph
	executor *runtime.Executor
	sessions *session.Manager

	store               ports.CheckpointStore
	locker              ports.DistributedLocker
	logger              *slog.Logger
	hooks               domain.LifecycleHooks
	tracer              trace.Tracer
	sink                ports.EventSink
	namespace           uuid.UUID
	resumeNode          string
	maxSteps            int
	maxRequest          int
	checkpointEveryStep bool
	lockTTL             time.Duration
	leaseTTL            time.Duration
}

// New initializes an Engine over g.
func New(g *graph.Graph, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil graph", graph.ErrInvalidGraph)
	}
	eng := &Engine{
		graph:               g,
		namespace:           domain.ThreadNamespace,
		checkpointEveryStep: true,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.resumeNode == "" {
		eng.resumeNode = g.Entry()
		if g.Has(nodes.Supervisor) {
			eng.resumeNode = nodes.Supervisor
		}
	}
	if !g.Has(eng.resumeNode) {
		return nil, fmt.Errorf("%w: resume node %q is not registered", graph.ErrInvalidGraph, eng.resumeNode)
	}

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	if eng.lockTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithLockTTL(eng.lockTTL))
	}
	if eng.leaseTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithLeaseTTL(eng.leaseTTL))
	}
	eng.sessions = session.NewManager(eng.store, sessionOpts...)

	runtimeOpts := []runtime.Option{
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithMaxSteps(eng.maxSteps),
		runtime.WithTracer(eng.tracer),
	}
	if eng.sink != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithEventSink(eng.sink))
	}
	if eng.checkpointEveryStep {
		runtimeOpts = append(runtimeOpts, runtime.WithCheckpointer(eng.sessions.Save))
	}
	eng.executor = runtime.New(g, runtimeOpts...)

	return eng, nil
}

// ThreadID derives the thread identifier for a username.
func (e *Engine) ThreadID(username string) (string, error) {
	return domain.ThreadIDIn(e.namespace, username)
}

// Graph returns the routing graph.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// Sessions returns the thread manager, for administration.
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// MaxSteps returns the step budget of each run.
func (e *Engine) MaxSteps() int { return e.executor.MaxSteps() }

// ResumeNode returns the node Resume re-enters at.
func (e *Engine) ResumeNode() string { return e.resumeNode }

// History returns the persisted conversation of the user's thread, empty if none.
func (e *Engine) History(ctx context.Context, username string) (domain.Conversation, error) {
	threadID, err := e.ThreadID(username)
	if err != nil {
		return domain.Conversation{}, err
	}
	return e.sessions.Load(ctx, threadID)
}

// Stream appends request to the user's thread and starts a run at the graph entry.
// The returned Run emits one event per step. The thread stays leased until the run ends;
// a concurrent call for the same thread fails with domain.ErrThreadBusy.
func (e *Engine) Stream(ctx context.Context, username, request string) (*Run, error) {
	clean, err := SanitizeRequest(request, e.maxRequest)
	if err != nil {
		return nil, err
	}
	threadID, err := e.ThreadID(username)
	if err != nil {
		return nil, err
	}

	release, err := e.sessions.Acquire(ctx, threadID)
	if err != nil {
		return nil, err
	}
	history, err := e.sessions.Load(ctx, threadID)
	if err != nil {
		release()
		return nil, err
	}

	conv := history.Append(domain.UserMessage(clean))
	e.logger.Info("Run requested", "thread_id", threadID, "history", history.Len())
	return e.start(ctx, threadID, conv, e.graph.Entry(), release), nil
}

// Resume re-enters a persisted thread at the resume node without a new message,
// typically after a failed or interrupted run.
func (e *Engine) Resume(ctx context.Context, username string) (*Run, error) {
	threadID, err := e.ThreadID(username)
	if err != nil {
		return nil, err
	}

	release, err := e.sessions.Acquire(ctx, threadID)
	if err != nil {
		return nil, err
	}
	history, err := e.sessions.Load(ctx, threadID)
	if err != nil {
		release()
		return nil, err
	}
	if history.IsEmpty() {
		release()
		return nil, fmt.Errorf("resume %s: %w", threadID, domain.ErrThreadNotFound)
	}

	e.logger.Info("Run resumed", "thread_id", threadID, "node", e.resumeNode, "history", history.Len())
	return e.start(ctx, threadID, history, e.resumeNode, release), nil
}

// Invoke runs a request to completion.
func (e *Engine) Invoke(ctx context.Context, username, request string) (Result, error) {
	run, err := e.Stream(ctx, username, request)
	if err != nil {
		return Result{}, err
	}
	return run.Wait()
}

func (e *Engine) start(ctx context.Context, threadID string, conv domain.Conversation, at string, release func()) *Run {
	return e.executor.Start(ctx, runtime.Input{
		ThreadID:     threadID,
		Conversation: conv,
		StartAt:      at,
		Finalize: func(ctx context.Context, res runtime.Result, _ error) error {
			defer release()
			return e.sessions.Save(ctx, threadID, res.Conversation)
		},
	})
}
