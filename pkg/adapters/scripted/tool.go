package scripted

import (
	"context"
	"sync"
)

// Tool is a ports.Tool backed by a function. It records every input.
type Tool struct {
	name string
	desc string
	fn   func(ctx context.Context, input string) (string, error)

	mu     sync.Mutex
	inputs []string
}

// NewTool creates a tool named name that answers with fn.
func NewTool(name string, fn func(ctx context.Context, input string) (string, error)) *Tool {
	return &Tool{name: name, desc: "Scripted " + name + " tool.", fn: fn}
}

// Echo creates a tool that returns its input prefixed with the tool name.
func Echo(name string) *Tool {
	return NewTool(name, func(ctx context.Context, input string) (string, error) {
		return name + ": " + input, nil
	})
}

func (t *Tool) Name() string        { return t.name }
func (t *Tool) Description() string { return t.desc }

func (t *Tool) Invoke(ctx context.Context, input string) (string, error) {
	t.mu.Lock()
	t.inputs = append(t.inputs, input)
	t.mu.Unlock()
	return t.fn(ctx, input)
}

// Inputs returns every input received so far.
func (t *Tool) Inputs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.inputs...)
}
