package ports

import (
	"context"

	"github.com/aretw0/switchboard/pkg/domain"
)

// CheckpointStore defines the interface for persisting thread history.
// This allows a conversation to survive the process and be resumed later.
type CheckpointStore interface {
	// Save persists the conversation for a given thread ID, replacing the previous version.
	Save(ctx context.Context, threadID string, conv domain.Conversation) error

	// Load retrieves the conversation for a given thread ID.
	// Returns domain.ErrThreadNotFound if the thread does not exist.
	Load(ctx context.Context, threadID string) (domain.Conversation, error)

	// Delete removes the conversation for a given thread ID.
	Delete(ctx context.Context, threadID string) error

	// List returns the IDs of all stored threads.
	List(ctx context.Context) ([]string, error)
}
