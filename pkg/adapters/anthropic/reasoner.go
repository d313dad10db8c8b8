// Package anthropic implements ports.Reasoner on the Anthropic Messages API.
// Decisions are forced tool calls; free text can be streamed.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/aretw0/switchboard/pkg/adapters/llm"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
)

const provider = "anthropic"

// DefaultModel is used when Options.Model is empty.
const DefaultModel = anthropic.Model("claude-sonnet-4-5")

// Options configures the adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Reasoner wraps the Anthropic client.
type Reasoner struct {
	client *anthropic.Client
	opts   Options
}

var _ ports.StreamingReasoner = (*Reasoner)(nil)

// New creates a reasoner. Without Options.APIKey the client reads ANTHROPIC_API_KEY.
func New(reqOpts []option.RequestOption, optFns ...func(o *Options)) *Reasoner {
	opts := defaults(optFns)
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(reqOpts...)
	return &Reasoner{client: &client, opts: opts}
}

// NewFromClient creates a reasoner from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Reasoner {
	return &Reasoner{client: client, opts: defaults(optFns)}
}

func defaults(optFns []func(o *Options)) Options {
	opts := Options{
		Model:       DefaultModel,
		Temperature: 0,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	return opts
}

// messages converts the history. The API requires alternating user/assistant turns that
// open with a user turn, so consecutive turns of the same side are merged and tool output
// is attributed to the user side.
func messages(history []domain.Message) []anthropic.MessageParam {
	type turn struct {
		assistant bool
		parts     []string
	}
	var turns []turn
	for _, m := range history {
		assistant := m.Role == domain.RoleAssistant
		text := llm.Text(m)
		if m.Role == domain.RoleSystem {
			text = "[tool output] " + text
		}
		if n := len(turns); n > 0 && turns[n-1].assistant == assistant {
			turns[n-1].parts = append(turns[n-1].parts, text)
			continue
		}
		turns = append(turns, turn{assistant: assistant, parts: []string{text}})
	}
	if len(turns) > 0 && turns[0].assistant {
		turns = append([]turn{{parts: []string{"(conversation continues)"}}}, turns...)
	}
	if len(turns) == 0 || turns[len(turns)-1].assistant {
		turns = append(turns, turn{parts: []string{"Continue."}})
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.parts, "\n\n"))
		if t.assistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func (r *Reasoner) params(instructions string, history []domain.Message) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:       r.opts.Model,
		Messages:    messages(history),
		MaxTokens:   r.opts.MaxTokens,
		Temperature: anthropic.Float(r.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: instructions}},
	}
}

// Decide forces a call of the route tool.
func (r *Reasoner) Decide(ctx context.Context, req ports.DecisionRequest) (ports.Decision, error) {
	schema := llm.DecisionSchema(req)
	params := r.params(llm.DecisionPrompt(req), req.History)
	params.Tools = []anthropic.ToolUnionParam{
		anthropic.ToolUnionParamOfTool(anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: schema["properties"],
			Required:   []string{"next", "reason"},
		}, llm.RouteTool),
	}
	params.ToolChoice = anthropic.ToolChoiceUnionParam{
		OfTool: &anthropic.ToolChoiceToolParam{Name: llm.RouteTool},
	}

	resp, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return ports.Decision{}, classify(ctx, err)
	}
	for _, block := range resp.Content {
		if block.Type != "tool_use" {
			continue
		}
		use := block.AsToolUse()
		if use.Name != llm.RouteTool {
			continue
		}
		raw, err := json.Marshal(use.Input)
		if err != nil {
			return ports.Decision{}, err
		}
		return llm.DecodeDecision(raw)
	}
	return ports.Decision{}, llm.ErrNoDecision
}

// Generate returns the text blocks of the reply.
func (r *Reasoner) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	resp, err := r.client.Messages.New(ctx, r.params(req.Instructions, req.History))
	if err != nil {
		return "", classify(ctx, err)
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	return b.String(), nil
}

// GenerateStream delivers text deltas as they arrive.
func (r *Reasoner) GenerateStream(ctx context.Context, req ports.GenerateRequest, onFragment func(string)) (string, error) {
	stream := r.client.Messages.NewStreaming(ctx, r.params(req.Instructions, req.History))
	defer stream.Close()

	var b strings.Builder
	for stream.Next() {
		ev := stream.Current()
		if ev.Type != "content_block_delta" || ev.Delta.Type != "text_delta" || ev.Delta.Text == "" {
			continue
		}
		b.WriteString(ev.Delta.Text)
		onFragment(ev.Delta.Text)
	}
	if err := stream.Err(); err != nil {
		return b.String(), classify(ctx, err)
	}
	return b.String(), nil
}

func classify(ctx context.Context, err error) error {
	status := 0
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
	}
	return llm.Classify(ctx, provider, status, err)
}
