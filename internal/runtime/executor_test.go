package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/switchboard/internal/runtime"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// say builds a node that appends one message and routes to next.
func say(name, next string, targets ...string) graph.Node {
	if len(targets) == 0 {
		targets = []string{next}
	}
	return graph.Func(name, targets, func(ctx context.Context, conv domain.Conversation) (domain.Command, error) {
		return domain.Goto(next, domain.AssistantMessage(name, name+" spoke")), nil
	})
}

func mustBuild(t *testing.T, entry string, nodes ...graph.Node) *graph.Graph {
	t.Helper()
	g, err := graph.NewBuilder().Add(nodes...).Entry(entry).Build()
	require.NoError(t, err)
	return g
}

func collect(run *runtime.Run) []domain.Event {
	var events []domain.Event
	for ev := range run.Events() {
		events = append(events, ev)
	}
	return events
}

func TestExecutor_LinearRun(t *testing.T) {
	g := mustBuild(t, "a", say("a", "b"), say("b", "c"), say("c", domain.End))
	exec := runtime.New(g)

	seed := domain.NewConversation(domain.UserMessage("go"))
	run := exec.Start(context.Background(), runtime.Input{ThreadID: "t1", Conversation: seed})
	events := collect(run)
	res, err := run.Wait()
	require.NoError(t, err)

	require.Len(t, events, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, domain.EventStep, events[i].Type)
		assert.Equal(t, want, events[i].Node)
		assert.Equal(t, i+1, events[i].Step)
		assert.Equal(t, run.ID(), events[i].RunID)
	}
	assert.True(t, events[2].Terminal())

	assert.True(t, res.Terminal)
	assert.Equal(t, 3, res.Steps)
	assert.Equal(t, []string{"a", "b", "c"}, res.Path)
	assert.Equal(t, 4, res.Conversation.Len())
	assert.True(t, res.Conversation.HasPrefix(seed))
	assert.Equal(t, 1, seed.Len(), "input conversation must not be mutated")
}

func TestExecutor_StartAt(t *testing.T) {
	g := mustBuild(t, "a", say("a", "b"), say("b", domain.End))
	res, err := runtime.New(g).Invoke(context.Background(), runtime.Input{StartAt: "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.Path)

	_, err = runtime.New(g).Invoke(context.Background(), runtime.Input{StartAt: "ghost"})
	assert.ErrorIs(t, err, domain.ErrRouting)
}

func TestExecutor_LoopGuard(t *testing.T) {
	g := mustBuild(t, "ping", say("ping", "pong"), say("pong", "ping"))
	exec := runtime.New(g, runtime.WithMaxSteps(5))

	res, err := exec.Invoke(context.Background(), runtime.Input{})
	require.Error(t, err)

	var guard *domain.LoopGuardError
	require.True(t, errors.As(err, &guard))
	assert.Equal(t, 5, guard.Limit)
	assert.ErrorIs(t, err, domain.ErrContractViolation)
	assert.Equal(t, 5, res.Conversation.Len(), "partial history is kept")
	assert.False(t, res.Terminal)
}

func TestExecutor_RoutingErrors(t *testing.T) {
	rogue := graph.Func("rogue", []string{"b"}, func(ctx context.Context, conv domain.Conversation) (domain.Command, error) {
		return domain.Goto("nowhere"), nil
	})
	undeclared := graph.Func("sneaky", []string{"b"}, func(ctx context.Context, conv domain.Conversation) (domain.Command, error) {
		return domain.Finish(), nil
	})
	empty := graph.Func("blank", []string{"b"}, func(ctx context.Context, conv domain.Conversation) (domain.Command, error) {
		return domain.Command{}, nil
	})

	for _, node := range []graph.Node{rogue, undeclared, empty} {
		t.Run(node.Name(), func(t *testing.T) {
			g := mustBuild(t, node.Name(), node, say("b", domain.End))
			_, err := runtime.New(g).Invoke(context.Background(), runtime.Input{})

			var re *domain.RoutingError
			require.True(t, errors.As(err, &re), "got %v", err)
			assert.Equal(t, node.Name(), re.From)
		})
	}
}

func TestExecutor_NodeErrorKeepsPartialHistory(t *testing.T) {
	boom := errors.New("backend exploded")
	failing := graph.Func("fail", []string{domain.End}, func(ctx context.Context, conv domain.Conversation) (domain.Command, error) {
		return domain.Command{}, domain.Unavailable("reasoner", boom)
	})
	g := mustBuild(t, "a", say("a", "fail"), failing)

	res, err := runtime.New(g).Invoke(context.Background(), runtime.Input{})

	var ne *domain.NodeError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "fail", ne.Node)
	assert.Equal(t, 2, ne.Step)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)
	assert.Equal(t, 1, res.Conversation.Len())
}

func TestExecutor_InvalidMessageRole(t *testing.T) {
	bad := graph.Func("bad", []string{domain.End}, func(ctx context.Context, conv domain.Conversation) (domain.Command, error) {
		return domain.Finish(domain.Message{Role: "robot"}), nil
	})
	_, err := runtime.New(mustBuild(t, "bad", bad)).Invoke(context.Background(), runtime.Input{})
	assert.Error(t, err)
}

func TestExecutor_Cancellation(t *testing.T) {
	entered := make(chan struct{})
	blocking := graph.Func("slow", []string{domain.End}, func(ctx context.Context, conv domain.Conversation) (domain.Command, error) {
		close(entered)
		<-ctx.Done()
		return domain.Command{}, ctx.Err()
	})
	g := mustBuild(t, "a", say("a", "slow"), blocking)

	run := runtime.New(g).Start(context.Background(), runtime.Input{})
	<-entered
	run.Cancel()

	res, err := run.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, res.Path)
}

func TestExecutor_CancelledParentStopsAtBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	first := graph.Func("a", []string{"b"}, func(c context.Context, conv domain.Conversation) (domain.Command, error) {
		once.Do(cancel)
		return domain.Goto("b", domain.AssistantMessage("a", "done")), nil
	})
	g := mustBuild(t, "a", first, say("b", domain.End))

	res, err := runtime.New(g).Invoke(ctx, runtime.Input{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, res.Path, "b must never start")
}

func TestExecutor_AbandonedConsumerDoesNotLeak(t *testing.T) {
	g := mustBuild(t, "ping", say("ping", "pong"), say("pong", "ping"))
	run := runtime.New(g, runtime.WithEventBuffer(0), runtime.WithMaxSteps(1000)).
		Start(context.Background(), runtime.Input{})

	<-run.Events()
	run.Cancel()

	select {
	case <-run.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after the consumer went away")
	}
}

func TestExecutor_CheckpointFailureIsWarning(t *testing.T) {
	g := mustBuild(t, "a", say("a", "b"), say("b", domain.End))

	var saved []int
	cp := func(ctx context.Context, threadID string, conv domain.Conversation) error {
		saved = append(saved, conv.Len())
		if len(saved) == 1 {
			return errors.New("disk full")
		}
		return nil
	}

	run := runtime.New(g, runtime.WithCheckpointer(cp)).Start(context.Background(), runtime.Input{ThreadID: "t"})
	events := collect(run)
	res, err := run.Wait()
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, saved)
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventStep, events[0].Type)
	assert.Equal(t, domain.EventWarning, events[1].Type)
	assert.Contains(t, events[1].Warning, "disk full")
	assert.Equal(t, domain.EventStep, events[2].Type)
	assert.True(t, res.Terminal)
	assert.Len(t, res.Warnings, 1)
}

func TestExecutor_Fragments(t *testing.T) {
	streamer := graph.Func("writer", []string{domain.End}, func(ctx context.Context, conv domain.Conversation) (domain.Command, error) {
		graph.EmitFragment(ctx, "Hel")
		graph.EmitFragment(ctx, "lo")
		return domain.Finish(domain.AssistantMessage("writer", "Hello")), nil
	})

	run := runtime.New(mustBuild(t, "writer", streamer)).Start(context.Background(), runtime.Input{})
	events := collect(run)

	require.Len(t, events, 3)
	assert.Equal(t, domain.EventFragment, events[0].Type)
	assert.Equal(t, "Hel", events[0].Fragment)
	assert.Equal(t, "lo", events[1].Fragment)
	assert.Equal(t, domain.EventStep, events[2].Type)
}

func TestExecutor_LifecycleHooks(t *testing.T) {
	var entered, left []string
	var runs, ends int
	hooks := domain.LifecycleHooks{
		OnRunStart:  func(ctx context.Context, e *domain.RunEvent) { runs++ },
		OnRunEnd:    func(ctx context.Context, e *domain.RunEvent) { ends++ },
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) { entered = append(entered, e.Node) },
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) { left = append(left, e.Node+">"+e.Next) },
	}
	g := mustBuild(t, "a", say("a", "b"), say("b", domain.End))

	_, err := runtime.New(g, runtime.WithLifecycleHooks(hooks)).Invoke(context.Background(), runtime.Input{})
	require.NoError(t, err)

	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, ends)
	assert.Equal(t, []string{"a", "b"}, entered)
	assert.Equal(t, []string{"a>b", "b>" + domain.End}, left)
}

func TestExecutor_Finalize(t *testing.T) {
	g := mustBuild(t, "a", say("a", domain.End))

	var got runtime.Result
	in := runtime.Input{
		ThreadID: "t",
		Finalize: func(ctx context.Context, res runtime.Result, runErr error) error {
			got = res
			assert.NoError(t, ctx.Err())
			return errors.New("final save failed")
		},
	}
	res, err := runtime.New(g).Invoke(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 1, got.Conversation.Len())
	assert.Equal(t, []string{"final save failed"}, res.Warnings)
}
