// Package policy gates tool execution with an OPA rego policy.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/pkg/ports"
	"github.com/open-policy-agent/opa/rego"
)

// Query is evaluated against every tool call. It must yield a set of denial reasons.
const Query = "data.switchboard.exec.deny"

// DefaultPolicy blocks destructive filesystem commands and outbound network tools.
const DefaultPolicy = `
package switchboard.exec

deny[msg] {
	contains(input.program, "rm -rf /")
	msg := "destructive filesystem command"
}

deny[msg] {
	regex.match("(?i)\\b(curl|wget|nc|ssh)\\b", input.program)
	msg := "network access is not allowed"
}

deny[msg] {
	input.tool == "python"
	regex.match("\\bos\\.system\\(|\\bsubprocess\\.", input.program)
	msg := "spawning processes is not allowed"
}
`

// Input is what a policy sees about a tool call.
type Input struct {
	Tool    string `json:"tool"`
	Program string `json:"program"`
}

// Verdict is the outcome of an evaluation.
type Verdict struct {
	Allowed bool
	Reasons []string
}

// Engine is a prepared policy.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles the policy source.
func NewEngine(ctx context.Context, source string) (*Engine, error) {
	r := rego.New(
		rego.Query(Query),
		rego.Module("switchboard_exec.rego", source),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &Engine{query: query}, nil
}

// Load reads a policy file, falling back to DefaultPolicy when path is empty.
func Load(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}
	return NewEngine(ctx, string(src))
}

// Evaluate checks one tool call.
func (e *Engine) Evaluate(ctx context.Context, in Input) (Verdict, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Verdict{Allowed: true}, nil
	}

	set, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return Verdict{}, fmt.Errorf("policy returned %T, want a set of reasons", results[0].Expressions[0].Value)
	}
	var reasons []string
	for _, v := range set {
		reasons = append(reasons, fmt.Sprint(v))
	}
	sort.Strings(reasons)
	return Verdict{Allowed: len(reasons) == 0, Reasons: reasons}, nil
}

type guardedTool struct {
	next   ports.Tool
	engine *Engine
	logger *slog.Logger
}

// Guard wraps a tool so every call is evaluated first. A denied call is not executed; the
// denial is returned as the tool's output so the node can report it.
func Guard(t ports.Tool, engine *Engine, logger *slog.Logger) ports.Tool {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &guardedTool{next: t, engine: engine, logger: logger}
}

func (g *guardedTool) Name() string        { return g.next.Name() }
func (g *guardedTool) Description() string { return g.next.Description() }

func (g *guardedTool) Invoke(ctx context.Context, input string) (string, error) {
	verdict, err := g.engine.Evaluate(ctx, Input{Tool: g.next.Name(), Program: input})
	if err != nil {
		return "", err
	}
	if !verdict.Allowed {
		g.logger.Warn("Tool call denied by policy", "tool", g.next.Name(), "reasons", verdict.Reasons)
		return "execution blocked by policy: " + strings.Join(verdict.Reasons, "; "), nil
	}
	return g.next.Invoke(ctx, input)
}
