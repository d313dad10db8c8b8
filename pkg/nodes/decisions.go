package nodes

import (
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
)

// NewSupervisor builds the dispatcher. It sees the whole history and is re-entered after every
// enhancer run and every validator resume.
func NewSupervisor(reasoner ports.Reasoner, p Prompts) *Decision[SupervisorChoice] {
	return NewDecision(Supervisor, reasoner, p.Supervisor,
		Route[SupervisorChoice]{ChooseEnhancer, Enhancer,
			"the request is ambiguous or under-specified and needs clarification, expansion or refinement"},
		Route[SupervisorChoice]{ChooseRequestGrader, RequestGrader,
			"the user has submitted a new request whose scope has not been checked"},
		Route[SupervisorChoice]{ChooseResearcher, Researcher,
			"additional facts, context or data collection is necessary"},
		Route[SupervisorChoice]{ChooseCoder, Coder,
			"implementation, computation, data analysis or technical problem-solving is required"},
	)
}

// NewRequestGrader builds the scope gate. An out-of-scope request ends the run with an
// explanation and never reaches the supervisor.
func NewRequestGrader(reasoner ports.Reasoner, p Prompts) *Decision[GraderChoice] {
	d := NewDecision(RequestGrader, reasoner, p.Grader,
		Route[GraderChoice]{InScope, Supervisor, "the request is about " + p.Domain + " or a closely related topic"},
		Route[GraderChoice]{OutOfScope, domain.End, "the request is unrelated to " + p.Domain},
	)
	d.annotate = func(choice GraderChoice, reason string) domain.Message {
		if choice == OutOfScope {
			return domain.AssistantMessage(RequestGrader, p.refusal(reason))
		}
		return domain.AssistantMessage(RequestGrader, reason)
	}
	return d
}

// NewValidator builds the termination gate. It judges the first message of the thread
// against the latest output, ignoring everything in between.
func NewValidator(reasoner ports.Reasoner, p Prompts) *Decision[ValidatorChoice] {
	d := NewDecision(Validator, reasoner, p.Validator,
		Route[ValidatorChoice]{Resume, Supervisor,
			"the answer is clearly off-topic, harmful or does not respond to the request"},
		Route[ValidatorChoice]{Finish, domain.End,
			"the answer reasonably addresses the request (the default)"},
	)
	d.view = firstAndLast
	return d
}

// firstAndLast returns message[0] and the last message, or just message[0]
// when the conversation holds a single entry.
func firstAndLast(c domain.Conversation) []domain.Message {
	first, ok := c.First()
	if !ok {
		return nil
	}
	if c.Len() == 1 {
		return []domain.Message{first}
	}
	last, _ := c.Last()
	return []domain.Message{first, last}
}
