package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/graph"
	"github.com/aretw0/switchboard/pkg/ports"
)

// Task is a node that produces content and always hands control to the same successor.
type Task struct {
	name         string
	next         string
	instructions string
	reasoner     ports.Reasoner

	tool             ports.Tool
	toolInstructions string
}

// NewTask builds a content-only task node.
func NewTask(name, next string, reasoner ports.Reasoner, instructions string) *Task {
	return &Task{name: name, next: next, reasoner: reasoner, instructions: instructions}
}

// WithTool makes the task ask the reasoner for a tool input, run the tool, and answer with the
// tool output in view. A nil tool leaves the task content-only.
func (t *Task) WithTool(tool ports.Tool, instructions string) *Task {
	t.tool = tool
	t.toolInstructions = instructions
	return t
}

func (t *Task) Name() string      { return t.name }
func (t *Task) Kind() graph.Kind  { return graph.KindTask }
func (t *Task) Targets() []string { return []string{t.next} }
func (t *Task) Tool() ports.Tool  { return t.tool }
func (t *Task) Successor() string { return t.next }

func (t *Task) Invoke(ctx context.Context, conv domain.Conversation) (domain.Command, error) {
	history := conv.Messages()

	if t.tool != nil {
		input, err := t.reasoner.Generate(ctx, ports.GenerateRequest{
			Node:         t.name,
			Instructions: fmt.Sprintf("%s\n\nTool: %s. %s", t.toolInstructions, t.tool.Name(), t.tool.Description()),
			History:      history,
		})
		if err != nil {
			return domain.Command{}, err
		}
		input = stripFences(input)
		if input == "" {
			return domain.Command{}, fmt.Errorf("reasoner produced empty input for tool %q", t.tool.Name())
		}

		output, err := t.tool.Invoke(ctx, input)
		if err != nil {
			return domain.Command{}, fmt.Errorf("tool %q: %w", t.tool.Name(), err)
		}
		history = append(history, domain.SystemMessage(
			fmt.Sprintf("%s input:\n%s\n\n%s output:\n%s", t.tool.Name(), input, t.tool.Name(), output)))
	}

	req := ports.GenerateRequest{Node: t.name, Instructions: t.instructions, History: history}

	var text string
	var err error
	if s, ok := t.reasoner.(ports.StreamingReasoner); ok {
		text, err = s.GenerateStream(ctx, req, func(fragment string) {
			graph.EmitFragment(ctx, fragment)
		})
	} else {
		text, err = t.reasoner.Generate(ctx, req)
	}
	if err != nil {
		return domain.Command{}, err
	}

	return domain.Goto(t.next, domain.AssistantMessage(t.name, strings.TrimSpace(text))), nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// Drop the language tag line.
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
