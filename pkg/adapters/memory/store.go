// Package memory provides a checkpoint store that lives for the lifetime of the process.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/switchboard/pkg/domain"
)

// Store implements ports.CheckpointStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Conversation
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Conversation),
	}
}

// Save keeps the conversation. Conversations are immutable values, so no copy is needed.
func (s *Store) Save(ctx context.Context, threadID string, conv domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[threadID] = conv
	return nil
}

// Load retrieves the conversation.
func (s *Store) Load(ctx context.Context, threadID string) (domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.data[threadID]
	if !ok {
		return domain.Conversation{}, domain.ErrThreadNotFound
	}
	return conv, nil
}

// Delete removes the thread.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, threadID)
	return nil
}

// List returns stored threads in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	threads := make([]string, 0, len(s.data))
	for id := range s.data {
		threads = append(threads, id)
	}
	sort.Strings(threads)
	return threads, nil
}
