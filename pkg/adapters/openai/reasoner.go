// Package openai implements ports.Reasoner on the OpenAI Chat Completions API.
// Decisions are forced calls of a route function whose arguments are constrained by a
// JSON schema; free text can be streamed.
package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/aretw0/switchboard/pkg/adapters/llm"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const provider = "openai"

// Options configure the adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Reasoner wraps the OpenAI client.
type Reasoner struct {
	client *openai.Client
	opts   Options
}

var _ ports.StreamingReasoner = (*Reasoner)(nil)

// New creates a reasoner. The API key is read from OPENAI_API_KEY unless passed in reqOpts.
func New(reqOpts []option.RequestOption, optFns ...func(o *Options)) *Reasoner {
	client := openai.NewClient(reqOpts...)
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a reasoner from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Reasoner {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Reasoner{client: client, opts: opts}
}

func (r *Reasoner) params(instructions string, history []domain.Message) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, openai.SystemMessage(instructions))
	for _, m := range history {
		switch m.Role {
		case domain.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case domain.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(llm.Text(m)))
		case domain.RoleSystem:
			messages = append(messages, openai.SystemMessage(llm.Text(m)))
		}
	}
	return openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               r.opts.Model,
		Temperature:         openai.Float(r.opts.Temperature),
		MaxCompletionTokens: openai.Int(r.opts.MaxCompletionTokens),
	}
}

// Decide forces a call of the route function.
func (r *Reasoner) Decide(ctx context.Context, req ports.DecisionRequest) (ports.Decision, error) {
	params := r.params(llm.DecisionPrompt(req), req.History)
	params.Tools = []openai.ChatCompletionToolParam{{
		Function: openai.FunctionDefinitionParam{
			Name:        llm.RouteTool,
			Description: openai.String("Select the next step."),
			Parameters:  llm.DecisionSchema(req),
			Strict:      openai.Bool(true),
		},
	}}
	params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
		OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
			Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: llm.RouteTool},
		},
	}

	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ports.Decision{}, classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return ports.Decision{}, domain.Unavailable(provider, errors.New("no choices returned"))
	}
	for _, tc := range resp.Choices[0].Message.ToolCalls {
		if tc.Function.Name == llm.RouteTool {
			return llm.DecodeDecision([]byte(tc.Function.Arguments))
		}
	}
	return ports.Decision{}, llm.ErrNoDecision
}

// Generate returns the completion text.
func (r *Reasoner) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	resp, err := r.client.Chat.Completions.New(ctx, r.params(req.Instructions, req.History))
	if err != nil {
		return "", classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.Unavailable(provider, errors.New("no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream delivers the completion as it arrives.
func (r *Reasoner) GenerateStream(ctx context.Context, req ports.GenerateRequest, onFragment func(string)) (string, error) {
	stream := r.client.Chat.Completions.NewStreaming(ctx, r.params(req.Instructions, req.History))
	defer stream.Close()

	var b strings.Builder
	for stream.Next() {
		for _, ch := range stream.Current().Choices {
			if ch.Delta.Content == "" {
				continue
			}
			b.WriteString(ch.Delta.Content)
			onFragment(ch.Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return b.String(), classify(ctx, err)
	}
	return b.String(), nil
}

func classify(ctx context.Context, err error) error {
	status := 0
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
	}
	return llm.Classify(ctx, provider, status, err)
}
