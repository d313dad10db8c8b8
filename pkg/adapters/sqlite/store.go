// Package sqlite provides a durable checkpoint store on an embedded SQLite database.
// Messages are stored one row each, so extending a thread only inserts the new tail.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aretw0/switchboard/pkg/domain"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements ports.CheckpointStore using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dsn and applies the schema.
// Use ":memory:" for a throwaway database.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			thread_id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			thread_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			created_at DATETIME,
			PRIMARY KEY (thread_id, seq),
			FOREIGN KEY (thread_id) REFERENCES threads(thread_id) ON DELETE CASCADE
		)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores conv as the thread's history. Rows shared with the stored version are kept;
// everything after the first difference is replaced.
func (s *Store) Save(ctx context.Context, threadID string, conv domain.Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO threads (thread_id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET updated_at = excluded.updated_at`,
		threadID, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert thread: %w", err)
	}

	stored, err := loadMessages(ctx, tx, threadID)
	if err != nil {
		return err
	}

	keep := 0
	for keep < len(stored) && keep < conv.Len() && sameMessage(stored[keep], conv.At(keep)) {
		keep++
	}

	if keep < len(stored) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE thread_id = ? AND seq >= ?`, threadID, keep); err != nil {
			return fmt.Errorf("failed to truncate thread: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (thread_id, seq, role, name, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := keep; i < conv.Len(); i++ {
		m := conv.At(i)
		var created any
		if !m.CreatedAt.IsZero() {
			created = m.CreatedAt.UTC()
		}
		if _, err := stmt.ExecContext(ctx, threadID, i, string(m.Role), m.Name, m.Content, created); err != nil {
			return fmt.Errorf("failed to insert message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Load reads the thread's history in order.
func (s *Store) Load(ctx context.Context, threadID string) (domain.Conversation, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM threads WHERE thread_id = ?`, threadID).Scan(&exists)
	if err == sql.ErrNoRows {
		return domain.Conversation{}, domain.ErrThreadNotFound
	}
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("failed to query thread: %w", err)
	}

	msgs, err := loadMessages(ctx, s.db, threadID)
	if err != nil {
		return domain.Conversation{}, err
	}
	return domain.NewConversation(msgs...), nil
}

// Delete removes the thread and its messages.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return nil
}

// List returns thread IDs, most recently updated first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT thread_id FROM threads ORDER BY updated_at DESC, thread_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	threads := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		threads = append(threads, id)
	}
	return threads, rows.Err()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadMessages(ctx context.Context, q querier, threadID string) ([]domain.Message, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT role, name, content, created_at FROM messages WHERE thread_id = ? ORDER BY seq`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var role string
		var created sql.NullTime
		if err := rows.Scan(&role, &m.Name, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = domain.Role(role)
		if created.Valid {
			m.CreatedAt = created.Time
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func sameMessage(a, b domain.Message) bool {
	return a.Role == b.Role && a.Name == b.Name && a.Content == b.Content
}
