// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides run/transcript persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/oakmail/steward/internal/orchestrator"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			correlation_id TEXT NOT NULL,
			status TEXT NOT NULL,
			final_answer TEXT NOT NULL DEFAULT '',
			started_at DATETIME NOT NULL,
			finished_at DATETIME,

			CHECK (status IN ('running', 'completed', 'failed'))
		);

		CREATE INDEX IF NOT EXISTS idx_runs_correlation
			ON runs(correlation_id);

		CREATE TABLE IF NOT EXISTS transcript_messages (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			operation_name TEXT,
			call_id TEXT,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id)
		);

		CREATE INDEX IF NOT EXISTS idx_transcript_run_created
			ON transcript_messages(run_id, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// CreateRun inserts a new run in the running state.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, correlation_id, status, final_answer, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.CorrelationID, run.Status, run.FinalAnswer, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// FinishRun marks a run as completed or failed and records the final answer.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID, status, finalAnswer string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, final_answer = ?, finished_at = ? WHERE id = ?`,
		status, finalAnswer, time.Now().UTC(), runID,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun fetches a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	var finishedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, correlation_id, status, final_answer, started_at, finished_at FROM runs WHERE id = ?`,
		runID,
	).Scan(&run.ID, &run.CorrelationID, &run.Status, &run.FinalAnswer, &run.StartedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}

// SaveMessage appends one history message to a run's transcript.
func (s *SQLiteStore) SaveMessage(ctx context.Context, runID string, msg orchestrator.Message) error {
	rec := TranscriptMessage{
		ID:        uuid.New().String(),
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
	}

	switch m := msg.(type) {
	case orchestrator.UserMessage:
		rec.Role = RoleUser
		rec.Content = m.Text
	case orchestrator.AssistantMessage:
		rec.Role = RoleAssistant
		rec.Content = m.Text
		// One row per requested call keeps the transcript flat.
		for _, call := range m.RequestedCalls {
			args, err := callArguments(call)
			if err != nil {
				return err
			}
			if _, err := s.db.ExecContext(ctx,
				`INSERT INTO transcript_messages (id, run_id, role, content, operation_name, call_id, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				uuid.New().String(), runID, RoleAssistant, args, call.Name, call.ID, time.Now().UTC(),
			); err != nil {
				return fmt.Errorf("inserting call message: %w", err)
			}
		}
		if rec.Content == "" {
			return nil
		}
	case orchestrator.OperationResult:
		rec.Role = RoleOperation
		rec.Content = m.Text
		rec.OperationName = m.OperationName
		rec.CallID = m.CallID
	default:
		return fmt.Errorf("unknown message type %T", msg)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcript_messages (id, run_id, role, content, operation_name, call_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.Role, rec.Content, rec.OperationName, rec.CallID, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// ListMessages returns a run's transcript in insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context, runID string) ([]*TranscriptMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, role, content, COALESCE(operation_name, ''), COALESCE(call_id, ''), created_at
		 FROM transcript_messages WHERE run_id = ? ORDER BY created_at, id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []*TranscriptMessage
	for rows.Next() {
		var m TranscriptMessage
		if err := rows.Scan(&m.ID, &m.RunID, &m.Role, &m.Content, &m.OperationName, &m.CallID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func callArguments(call orchestrator.OperationCall) (string, error) {
	data, err := json.Marshal(call.Arguments)
	if err != nil {
		return "", fmt.Errorf("encoding call arguments: %w", err)
	}
	return string(data), nil
}
