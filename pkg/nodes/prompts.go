package nodes

import (
	"fmt"
	"strings"
)

// DefaultDomain is the subject area requests are graded against.
const DefaultDomain = "quality control (QC) analysis of bulk RNA-seq data"

// Prompts holds the instruction text given to the reasoner by each node.
type Prompts struct {
	Domain     string
	Supervisor string
	Grader     string
	Validator  string
	Enhancer   string
	Researcher string
	// ResearcherQuery asks for the search query before the researcher writes its answer.
	ResearcherQuery string
	Coder           string
	// CoderProgram asks for the program to execute before the coder writes its answer.
	CoderProgram string
}

// DefaultPrompts returns the stock prompts for subject. An empty subject selects DefaultDomain.
func DefaultPrompts(subject string) Prompts {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultDomain
	}
	return Prompts{
		Domain: subject,
		Supervisor: fmt.Sprintf(`You supervise a team of specialists working on requests about %s.
Pick the single specialist that should act next and explain the choice in one or two sentences.

- enhancer: clarifies ambiguous requests and restructures poorly defined ones. Consider it first.
- request_grader: checks that a newly submitted request is on topic.
- researcher: gathers facts, context and data.
- coder: writes and runs code for calculations, data analysis and other technical work.

Avoid sending work to a specialist that has just produced the same result.`, subject),
		Grader: fmt.Sprintf(`You decide whether the user's request is in scope.
A request is in scope when it concerns %s or a closely related topic.
Explain the verdict in one sentence addressed to the user.`, subject),
		Validator: `You compare the user's request with the latest answer.
Finish unless the answer is clearly off-topic, harmful or fails to respond to the request.
Give a one-sentence reason.`,
		Enhancer: `Rewrite the user's request so that it is specific, complete and unambiguous.
Keep the user's intent. Do not answer the request.`,
		Researcher: `Using the search results in the conversation, write a concise, factual answer to the
request. Cite sources by URL where available.`,
		ResearcherQuery: `Write a single web search query that would find the information needed for the
request. Reply with the query only.`,
		Coder: `Using the program output in the conversation, explain the result to the user.
Include the code you ran when it helps.`,
		CoderProgram: `Write a self-contained program that computes what the request needs and prints the
result to standard output. Reply with the program only.`,
	}
}

func (p Prompts) refusal(reason string) string {
	msg := fmt.Sprintf("I can only help with %s, so I can't take on this request.", p.Domain)
	if reason != "" {
		msg += " " + reason
	}
	return msg
}
