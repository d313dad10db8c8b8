package nodes

import (
	"context"
	"strings"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/graph"
	"github.com/aretw0/switchboard/pkg/ports"
)

// Route binds one variant of a decision enum to the node it leads to.
type Route[C ~string] struct {
	Choice      C
	Target      string
	Description string
}

// Decision is a node whose successor is picked by the reasoner from a closed set of variants.
type Decision[C ~string] struct {
	name         string
	instructions string
	reasoner     ports.Reasoner
	routes       []Route[C]

	// view selects the part of the history the reasoner gets to see.
	view func(domain.Conversation) []domain.Message
	// annotate turns the reasoner's justification into the message appended to the conversation.
	annotate func(choice C, reason string) domain.Message
}

// NewDecision builds a decision node that shows the full history to the reasoner and appends
// its justification verbatim.
func NewDecision[C ~string](name string, reasoner ports.Reasoner, instructions string, routes ...Route[C]) *Decision[C] {
	return &Decision[C]{
		name:         name,
		instructions: instructions,
		reasoner:     reasoner,
		routes:       routes,
		view:         func(c domain.Conversation) []domain.Message { return c.Messages() },
		annotate: func(_ C, reason string) domain.Message {
			return domain.AssistantMessage(name, reason)
		},
	}
}

func (d *Decision[C]) Name() string     { return d.name }
func (d *Decision[C]) Kind() graph.Kind { return graph.KindDecision }

// Targets returns the successors of every route, without duplicates.
func (d *Decision[C]) Targets() []string {
	seen := make(map[string]bool, len(d.routes))
	var out []string
	for _, r := range d.routes {
		if !seen[r.Target] {
			seen[r.Target] = true
			out = append(out, r.Target)
		}
	}
	return out
}

// Choices returns the variants offered to the reasoner, in declaration order.
func (d *Decision[C]) Choices() []C {
	out := make([]C, len(d.routes))
	for i, r := range d.routes {
		out[i] = r.Choice
	}
	return out
}

// Parse maps a raw answer onto a variant. Only exact matches (surrounding space aside) are accepted.
func (d *Decision[C]) Parse(raw string) (Route[C], bool) {
	raw = strings.TrimSpace(raw)
	for _, r := range d.routes {
		if string(r.Choice) == raw {
			return r, true
		}
	}
	return Route[C]{}, false
}

func (d *Decision[C]) Invoke(ctx context.Context, conv domain.Conversation) (domain.Command, error) {
	req := ports.DecisionRequest{
		Node:         d.name,
		Instructions: d.instructions,
		History:      d.view(conv),
		Choices:      make([]ports.Choice, len(d.routes)),
	}
	for i, r := range d.routes {
		req.Choices[i] = ports.Choice{Name: string(r.Choice), Description: r.Description}
	}

	dec, err := d.reasoner.Decide(ctx, req)
	if err != nil {
		return domain.Command{}, err
	}

	route, ok := d.Parse(dec.Choice)
	if !ok {
		return domain.Command{}, &domain.ContractViolation{
			Node:    d.name,
			Got:     dec.Choice,
			Allowed: req.ChoiceNames(),
		}
	}
	return domain.Goto(route.Target, d.annotate(route.Choice, strings.TrimSpace(dec.Reason))), nil
}
