package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	// EventStep is emitted after a node completes and its messages are appended.
	EventStep EventType = "step"
	// EventFragment carries incremental content while a node is still running.
	EventFragment EventType = "fragment"
	// EventWarning reports a non-fatal problem, such as a failed checkpoint.
	EventWarning EventType = "warning"
)

// Event is a unit of a run's event stream.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	ThreadID  string    `json:"thread_id"`
	Step      int       `json:"step"`
	Node      string    `json:"node"`
	// Next is the node the executor will run after Node, or End.
	Next     string    `json:"next,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	Fragment string    `json:"fragment,omitempty"`
	Warning  string    `json:"warning,omitempty"`
}

// Terminal reports whether this step ended the run.
func (e Event) Terminal() bool { return e.Type == EventStep && e.Next == End }

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	RunID    string        `json:"run_id"`
	ThreadID string        `json:"thread_id"`
	Step     int           `json:"step"`
	Node     string        `json:"node"`
	Next     string        `json:"next,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// RunEvent represents the start or end of a run.
type RunEvent struct {
	RunID    string        `json:"run_id"`
	ThreadID string        `json:"thread_id"`
	StartAt  string        `json:"start_at"`
	Steps    int           `json:"steps,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnRunStart  func(context.Context, *RunEvent)
	OnRunEnd    func(context.Context, *RunEvent)
	OnNodeEnter func(context.Context, *NodeEvent)
	OnNodeLeave func(context.Context, *NodeEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnRunStart:  chainRun(h.OnRunStart, other.OnRunStart),
		OnRunEnd:    chainRun(h.OnRunEnd, other.OnRunEnd),
		OnNodeEnter: chainNode(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave: chainNode(h.OnNodeLeave, other.OnNodeLeave),
	}
}

func chainRun(a, b func(context.Context, *RunEvent)) func(context.Context, *RunEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *RunEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainNode(a, b func(context.Context, *NodeEvent)) func(context.Context, *NodeEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *NodeEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
