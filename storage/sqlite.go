// Package storage provides SQLite session transcript storage.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/daedalus/llm"
	"github.com/richinex/daedalus/model"
)

// TranscriptStore records session transcripts and tool call metrics.
// Writes are best-effort from the caller's perspective; the store is an
// audit trail, never a source of truth for orchestration state.
type TranscriptStore interface {
	SaveTranscript(ctx context.Context, sessionID string, history []llm.ChatMessage) error
	LoadTranscript(ctx context.Context, sessionID string) ([]llm.ChatMessage, error)
	RecordToolCall(ctx context.Context, sessionID string, call model.ToolCall) error
	ToolCalls(ctx context.Context, sessionID string) ([]model.ToolCall, error)
	ListSessions(ctx context.Context) ([]string, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Close() error
}

// SqliteStore implements TranscriptStore using SQLite.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStore, error) {
	// Create parent directory if needed
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			message_index INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_call_id TEXT,
			is_error INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE,
			UNIQUE(session_id, message_index)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session
		ON messages(session_id, message_index);

		CREATE TABLE IF NOT EXISTS tool_calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			input_size INTEGER NOT NULL,
			output_size INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			success INTEGER NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_tool_calls_session
		ON tool_calls(session_id);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SqliteStore) ensureSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (session_id) VALUES (?)",
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

// SaveTranscript replaces the stored transcript for a session.
func (s *SqliteStore) SaveTranscript(ctx context.Context, sessionID string, history []llm.ChatMessage) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	// Start transaction
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	// Clear existing messages for this session
	_, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear old messages: %w", err)
	}

	// Insert all messages
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO messages (session_id, message_index, role, content, tool_call_id, is_error) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, msg := range history {
		var callID interface{}
		if msg.ToolCallID != "" {
			callID = msg.ToolCallID
		}
		_, err = stmt.ExecContext(ctx, sessionID, i, msg.Role, msg.Content, callID, boolToInt(msg.IsError))
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	// Update session timestamp
	_, err = tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = datetime('now') WHERE session_id = ?",
		sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// LoadTranscript loads the stored transcript for a session.
// Returns empty slice if session doesn't exist.
func (s *SqliteStore) LoadTranscript(ctx context.Context, sessionID string) ([]llm.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content, tool_call_id, is_error FROM messages WHERE session_id = ? ORDER BY message_index ASC",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []llm.ChatMessage{} // Start with empty slice, not nil
	for rows.Next() {
		var msg llm.ChatMessage
		var callID sql.NullString
		var isError int
		if err := rows.Scan(&msg.Role, &msg.Content, &callID, &isError); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if callID.Valid {
			msg.ToolCallID = callID.String
		}
		msg.IsError = isError != 0
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// RecordToolCall appends a tool call metric to the session's audit trail.
func (s *SqliteStore) RecordToolCall(ctx context.Context, sessionID string, call model.ToolCall) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_calls (session_id, tool_name, input_size, output_size, duration_ms, success)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID,
		call.Name,
		call.InputSize,
		call.OutputSize,
		call.DurationMs,
		boolToInt(call.Success),
	)
	if err != nil {
		return fmt.Errorf("failed to record tool call: %w", err)
	}
	return nil
}

// ToolCalls returns recorded tool call metrics for a session in insertion order.
func (s *SqliteStore) ToolCalls(ctx context.Context, sessionID string) ([]model.ToolCall, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT tool_name, input_size, output_size, duration_ms, success FROM tool_calls WHERE session_id = ? ORDER BY id ASC",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool calls: %w", err)
	}
	defer rows.Close()

	calls := []model.ToolCall{}
	for rows.Next() {
		var c model.ToolCall
		var success int
		if err := rows.Scan(&c.Name, &c.InputSize, &c.OutputSize, &c.DurationMs, &success); err != nil {
			return nil, fmt.Errorf("failed to scan tool call: %w", err)
		}
		c.Success = success != 0
		calls = append(calls, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tool calls: %w", err)
	}

	return calls, nil
}

// ListSessions lists all session IDs, most recently updated first.
func (s *SqliteStore) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id FROM sessions ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{} // Start with empty slice, not nil
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sessionID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// DeleteSession deletes a session with its transcript and tool calls.
func (s *SqliteStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE session_id = ?",
		sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	// SQLite foreign keys are off by default, so cascade by hand.
	if _, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session messages: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM tool_calls WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session tool calls: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Verify SqliteStore implements the interface
var _ TranscriptStore = (*SqliteStore)(nil)
