package graph

import (
	"context"

	"github.com/aretw0/switchboard/pkg/domain"
)

// Kind classifies a node for presentation purposes.
type Kind string

const (
	KindDecision Kind = "decision"
	KindTask     Kind = "task"
)

// Node is a unit of work in the graph.
// It reads the conversation so far and returns a Command naming its successor.
type Node interface {
	Name() string
	// Targets lists every successor Invoke may return, domain.End included if the node can terminate.
	Targets() []string
	Invoke(ctx context.Context, conv domain.Conversation) (domain.Command, error)
}

// Kinded is implemented by nodes that report their Kind.
type Kinded interface {
	Kind() Kind
}

// KindOf returns the node's Kind, defaulting to KindTask.
func KindOf(n Node) Kind {
	if k, ok := n.(Kinded); ok {
		return k.Kind()
	}
	return KindTask
}

// InvokeFunc is the signature of a node body.
type InvokeFunc func(ctx context.Context, conv domain.Conversation) (domain.Command, error)

type funcNode struct {
	name    string
	targets []string
	fn      InvokeFunc
}

// Func adapts a plain function into a Node.
func Func(name string, targets []string, fn InvokeFunc) Node {
	return &funcNode{name: name, targets: append([]string(nil), targets...), fn: fn}
}

func (n *funcNode) Name() string      { return n.name }
func (n *funcNode) Targets() []string { return append([]string(nil), n.targets...) }

func (n *funcNode) Invoke(ctx context.Context, conv domain.Conversation) (domain.Command, error) {
	return n.fn(ctx, conv)
}
