// Package file provides a durable checkpoint store that keeps one JSON document per thread.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/switchboard/pkg/domain"
)

// DefaultDir is used when New is given an empty path.
var DefaultDir = filepath.Join(".switchboard", "threads")

// Store implements ports.CheckpointStore using the local filesystem.
type Store struct {
	BasePath string
}

// New creates a new Store rooted at basePath.
func New(basePath string) *Store {
	if basePath == "" {
		basePath = DefaultDir
	}
	return &Store{BasePath: basePath}
}

type document struct {
	ThreadID string              `json:"thread_id"`
	Messages domain.Conversation `json:"messages"`
}

func (s *Store) path(threadID string) (string, error) {
	if threadID == "" {
		return "", errors.New("threadID cannot be empty")
	}
	if strings.ContainsAny(threadID, `/\`) || strings.Contains(threadID, "..") {
		return "", fmt.Errorf("invalid threadID %q", threadID)
	}
	return filepath.Join(s.BasePath, threadID+".json"), nil
}

// Save persists the conversation atomically.
// It writes to a temporary file in the same directory, syncs it, and renames it over the destination.
func (s *Store) Save(ctx context.Context, threadID string, conv domain.Conversation) error {
	destPath, err := s.path(threadID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure thread directory: %w", err)
	}

	data, err := json.MarshalIndent(document{ThreadID: threadID, Messages: conv}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	// Same directory as the destination so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+threadID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows refuses to rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		// Windows refuses to rename over an existing file.
		if _, statErr := os.Stat(destPath); statErr == nil {
			if rmErr := os.Remove(destPath); rmErr != nil {
				return fmt.Errorf("failed to replace thread file: %w", rmErr)
			}
			err = os.Rename(tmpPath, destPath)
		}
		if err != nil {
			return fmt.Errorf("failed to rename temp file: %w", err)
		}
	}
	return nil
}

// Load reads the conversation of a thread.
func (s *Store) Load(ctx context.Context, threadID string) (domain.Conversation, error) {
	filePath, err := s.path(threadID)
	if err != nil {
		return domain.Conversation{}, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Conversation{}, domain.ErrThreadNotFound
		}
		return domain.Conversation{}, fmt.Errorf("failed to read thread file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Conversation{}, fmt.Errorf("failed to unmarshal thread %s: %w", threadID, err)
	}
	return doc.Messages, nil
}

// Delete removes the thread file. Deleting a missing thread is not an error.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	filePath, err := s.path(threadID)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete thread file: %w", err)
	}
	return nil
}

// List returns the IDs of all stored threads.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	threads := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		threads = append(threads, strings.TrimSuffix(name, ".json"))
	}
	return threads, nil
}
