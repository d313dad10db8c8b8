package runtime

import (
	"context"
	"sync"

	"github.com/aretw0/switchboard/pkg/domain"
)

// Result is the outcome of a run. On failure it still carries the partial conversation.
type Result struct {
	RunID        string
	ThreadID     string
	Conversation domain.Conversation
	// Path lists the nodes executed, in order.
	Path     []string
	Steps    int
	Terminal bool
	// Warnings collects non-fatal problems, such as checkpoints that could not be written.
	Warnings []string
}

// Last returns the final message of the conversation.
func (r Result) Last() (domain.Message, bool) {
	return r.Conversation.Last()
}

// Run is a handle on a run in progress.
// Its event stream is finite, ordered and meant for a single consumer.
type Run struct {
	id     string
	events chan domain.Event
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	result Result
	err    error
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Events returns the event stream. It is closed when the run ends.
func (r *Run) Events() <-chan domain.Event { return r.events }

// Done is closed once the result is available.
func (r *Run) Done() <-chan struct{} { return r.done }

// Cancel stops the run at the next node boundary and aborts in-flight collaborator calls.
// A consumer abandoning the stream must call it so the worker does not block.
func (r *Run) Cancel() { r.cancel() }

// Wait blocks until the run ends and returns its result.
// Events not yet read are discarded.
func (r *Run) Wait() (Result, error) {
	for range r.events {
	}
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

func (r *Run) finish(res Result, err error) {
	r.mu.Lock()
	r.result = res
	r.err = err
	r.mu.Unlock()
}

// emit delivers ev unless the run has been cancelled.
func (r *Run) emit(ctx context.Context, ev domain.Event) bool {
	select {
	case r.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
