package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
)

// Mask replaces every redacted match.
const Mask = "***"

// Common patterns for NewRedactMiddleware.
var (
	EmailPattern  = `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`
	APIKeyPattern = `\b(?:sk|pk|tvly)-[A-Za-z0-9_-]{16,}\b`
)

type redactMiddleware struct {
	next     ports.CheckpointStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks every match of the patterns in
// persisted message content. The conversation held by the caller is never modified.
// Redaction is one-way: Load returns the masked text.
func NewRedactMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactMiddleware) Save(ctx context.Context, threadID string, conv domain.Conversation) error {
	msgs := conv.Messages()
	for i := range msgs {
		for _, p := range m.patterns {
			msgs[i].Content = p.ReplaceAllString(msgs[i].Content, Mask)
		}
	}
	return m.next.Save(ctx, threadID, domain.NewConversation(msgs...))
}

func (m *redactMiddleware) Load(ctx context.Context, threadID string) (domain.Conversation, error) {
	return m.next.Load(ctx, threadID)
}

func (m *redactMiddleware) Delete(ctx context.Context, threadID string) error {
	return m.next.Delete(ctx, threadID)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
