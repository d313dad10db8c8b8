package ports

import (
	"context"

	"github.com/aretw0/switchboard/pkg/domain"
)

// Choice is one member of the closed set a decision node offers the reasoner.
type Choice struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DecisionRequest asks the reasoner to pick exactly one of Choices.
type DecisionRequest struct {
	// Node is the name of the asking node. Adapters may use it for logging or naming.
	Node         string
	Instructions string
	History      []domain.Message
	Choices      []Choice
}

// ChoiceNames returns the names of the offered choices, in order.
func (r DecisionRequest) ChoiceNames() []string {
	names := make([]string, len(r.Choices))
	for i, c := range r.Choices {
		names[i] = c.Name
	}
	return names
}

// Decision is the reasoner's answer to a DecisionRequest.
type Decision struct {
	Choice string `json:"next" mapstructure:"next"`
	Reason string `json:"reason" mapstructure:"reason"`
}

// GenerateRequest asks the reasoner for free text.
type GenerateRequest struct {
	Node         string
	Instructions string
	History      []domain.Message
}

// Reasoner is the reasoning backend consumed by decision and task nodes.
// Transient failures must be reported as domain.CollaboratorUnavailable.
type Reasoner interface {
	Decide(ctx context.Context, req DecisionRequest) (Decision, error)
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// StreamingReasoner is implemented by reasoners that can deliver text incrementally.
// onFragment is called for every chunk; the full text is returned at the end.
type StreamingReasoner interface {
	Reasoner
	GenerateStream(ctx context.Context, req GenerateRequest, onFragment func(string)) (string, error)
}
