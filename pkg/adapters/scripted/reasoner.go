// Package scripted provides deterministic Reasoner and Tool doubles that replay a script.
// They let the workflow run end to end without a reasoning backend.
package scripted

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
)

// ErrScriptExhausted is returned when a node asks for a decision that was not scripted.
var ErrScriptExhausted = errors.New("script exhausted")

// Call records one request the reasoner received.
type Call struct {
	Node    string
	Op      string // "decide" or "generate"
	History []domain.Message
	Choices []string
}

type entry struct {
	decision *ports.Decision
	text     string
	err      error
}

// Reasoner replays scripted answers per node, in order.
// Generate falls back to "<node> output" when nothing is scripted for the node.
type Reasoner struct {
	mu     sync.Mutex
	script map[string][]entry
	calls  []Call
	// ChunkSize splits streamed answers into fragments of this many bytes. Used by Streaming.
	ChunkSize int
}

// NewReasoner creates an empty script.
func NewReasoner() *Reasoner {
	return &Reasoner{script: make(map[string][]entry)}
}

// Choose queues a decision for node.
func (r *Reasoner) Choose(node, choice, reason string) *Reasoner {
	return r.push(node, entry{decision: &ports.Decision{Choice: choice, Reason: reason}})
}

// Reply queues free text for node.
func (r *Reasoner) Reply(node string, texts ...string) *Reasoner {
	for _, t := range texts {
		r.push(node, entry{text: t})
	}
	return r
}

// Fail queues an error for node's next call.
func (r *Reasoner) Fail(node string, err error) *Reasoner {
	return r.push(node, entry{err: err})
}

func (r *Reasoner) push(node string, e entry) *Reasoner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script[node] = append(r.script[node], e)
	return r
}

func (r *Reasoner) pop(node string) (entry, bool) {
	q := r.script[node]
	if len(q) == 0 {
		return entry{}, false
	}
	r.script[node] = q[1:]
	return q[0], true
}

// Calls returns every request received so far.
func (r *Reasoner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Visited returns the node of every call, in order.
func (r *Reasoner) Visited() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Node
	}
	return out
}

func (r *Reasoner) Decide(ctx context.Context, req ports.DecisionRequest) (ports.Decision, error) {
	if err := ctx.Err(); err != nil {
		return ports.Decision{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Node: req.Node, Op: "decide", History: req.History, Choices: req.ChoiceNames()})

	e, ok := r.pop(req.Node)
	switch {
	case !ok:
		return ports.Decision{}, fmt.Errorf("%w: no decision for %q", ErrScriptExhausted, req.Node)
	case e.err != nil:
		return ports.Decision{}, e.err
	case e.decision == nil:
		return ports.Decision{}, fmt.Errorf("%w: %q scripted text where a decision was expected", ErrScriptExhausted, req.Node)
	}
	return *e.decision, nil
}

func (r *Reasoner) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Node: req.Node, Op: "generate", History: req.History})

	e, ok := r.pop(req.Node)
	switch {
	case !ok:
		return req.Node + " output", nil
	case e.err != nil:
		return "", e.err
	case e.decision != nil:
		return "", fmt.Errorf("%w: %q scripted a decision where text was expected", ErrScriptExhausted, req.Node)
	}
	return e.text, nil
}

// Streaming wraps a Reasoner so it also satisfies ports.StreamingReasoner.
type Streaming struct {
	*Reasoner
}

func (s Streaming) GenerateStream(ctx context.Context, req ports.GenerateRequest, onFragment func(string)) (string, error) {
	text, err := s.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	size := s.ChunkSize
	if size <= 0 {
		size = 8
	}
	for i := 0; i < len(text); i += size {
		end := min(i+size, len(text))
		onFragment(text[i:end])
	}
	return text, nil
}
