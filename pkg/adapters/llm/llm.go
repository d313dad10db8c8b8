// Package llm holds the pieces shared by the hosted reasoner adapters: the routing tool
// schema, the decision decoder, transcript rendering and error classification.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

// RouteTool is the function the model must call to answer a decision.
const RouteTool = "route"

// DecisionSchema is the JSON schema of the route tool's arguments. The enum keeps the
// model inside the closed set; the decision node still validates the answer.
func DecisionSchema(req ports.DecisionRequest) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"next": map[string]any{
				"type":        "string",
				"enum":        req.ChoiceNames(),
				"description": "The selected option.",
			},
			"reason": map[string]any{
				"type":        "string",
				"description": "One or two sentences explaining the choice.",
			},
		},
		"required":             []string{"next", "reason"},
		"additionalProperties": false,
	}
}

// DecisionPrompt appends the option list to the node's instructions.
func DecisionPrompt(req ports.DecisionRequest) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Instructions))
	b.WriteString("\n\nOptions:\n")
	for _, c := range req.Choices {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
	}
	fmt.Fprintf(&b, "\nAnswer by calling %s exactly once.", RouteTool)
	return b.String()
}

// DecodeDecision reads route tool arguments.
func DecodeDecision(raw []byte) (ports.Decision, error) {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return ports.Decision{}, fmt.Errorf("decode %s arguments: %w", RouteTool, err)
	}

	var d ports.Decision
	if err := mapstructure.Decode(args, &d); err != nil {
		return ports.Decision{}, fmt.Errorf("decode %s arguments: %w", RouteTool, err)
	}
	d.Choice = strings.TrimSpace(d.Choice)
	return d, nil
}

// Text renders a message for a model that has no per-message author field.
// Node outputs are prefixed with the node name so the model can tell the specialists apart.
func Text(m domain.Message) string {
	if m.Name == "" {
		return m.Content
	}
	return "[" + m.Name + "] " + m.Content
}

// Classify wraps rate limits, server errors and transport failures as
// domain.CollaboratorUnavailable. status is 0 when no HTTP response was received.
func Classify(ctx context.Context, op string, status int, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	switch {
	case status == 0, status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return domain.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrNoDecision is returned when the model answered without calling the route tool.
var ErrNoDecision = errors.New("model did not call " + RouteTool)
