package ports

import "context"

// Tool is an external capability a task node can call, such as web search or code execution.
type Tool interface {
	Name() string
	// Description tells the reasoner what input the tool expects.
	Description() string
	Invoke(ctx context.Context, input string) (string, error)
}
