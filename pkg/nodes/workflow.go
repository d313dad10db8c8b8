package nodes

import (
	"errors"

	"github.com/aretw0/switchboard/pkg/graph"
	"github.com/aretw0/switchboard/pkg/ports"
)

// Deps are the collaborators the standard workflow is built from.
type Deps struct {
	Reasoner ports.Reasoner
	// Search backs the researcher. Without it the researcher answers from the conversation alone.
	Search ports.Tool
	// Exec backs the coder. Without it the coder writes code but does not run it.
	Exec    ports.Tool
	Prompts *Prompts
}

// Workflow builds the star-shaped routing graph with the request grader as entry.
func Workflow(deps Deps) (*graph.Graph, error) {
	if deps.Reasoner == nil {
		return nil, errors.New("workflow requires a reasoner")
	}
	p := DefaultPrompts("")
	if deps.Prompts != nil {
		p = *deps.Prompts
	}

	researcher := NewTask(Researcher, Validator, deps.Reasoner, p.Researcher)
	if deps.Search != nil {
		researcher.WithTool(deps.Search, p.ResearcherQuery)
	}
	coder := NewTask(Coder, Validator, deps.Reasoner, p.Coder)
	if deps.Exec != nil {
		coder.WithTool(deps.Exec, p.CoderProgram)
	}

	return graph.NewBuilder().
		Add(
			NewRequestGrader(deps.Reasoner, p),
			NewSupervisor(deps.Reasoner, p),
			NewTask(Enhancer, Supervisor, deps.Reasoner, p.Enhancer),
			researcher,
			coder,
			NewValidator(deps.Reasoner, p),
		).
		Entry(RequestGrader).
		Build()
}
