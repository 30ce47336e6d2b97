// ABOUTME: Store interface and data types for run transcript persistence
// ABOUTME: Defines Run, TranscriptMessage and the Store interface plus a no-op store

package store

import (
	"context"
	"errors"
	"time"

	"github.com/oakmail/steward/internal/orchestrator"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run records one decide/act run triggered by a notification.
type Run struct {
	ID            string
	CorrelationID string
	Status        string
	FinalAnswer   string
	StartedAt     time.Time
	FinishedAt    *time.Time
}

// Transcript role constants
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleOperation = "operation"
)

// TranscriptMessage is one persisted message from a run's history.
// Runs never read their transcript back; it exists for audit only.
type TranscriptMessage struct {
	ID            string
	RunID         string
	Role          string
	Content       string
	OperationName string
	CallID        string
	CreatedAt     time.Time
}

// Store persists runs and their transcripts.
type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, runID, status, finalAnswer string) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	SaveMessage(ctx context.Context, runID string, msg orchestrator.Message) error
	ListMessages(ctx context.Context, runID string) ([]*TranscriptMessage, error)
	Close() error
}

// NopStore discards everything. Used when no store path is configured.
type NopStore struct{}

func (NopStore) CreateRun(context.Context, *Run) error                  { return nil }
func (NopStore) FinishRun(context.Context, string, string, string) error { return nil }
func (NopStore) GetRun(context.Context, string) (*Run, error)           { return nil, ErrNotFound }
func (NopStore) SaveMessage(context.Context, string, orchestrator.Message) error { return nil }
func (NopStore) ListMessages(context.Context, string) ([]*TranscriptMessage, error) {
	return nil, nil
}
func (NopStore) Close() error { return nil }
