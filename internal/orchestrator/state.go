// ABOUTME: Per-run orchestration state: history, correlation id, source event.
// ABOUTME: Created once per inbound event and discarded when the run ends.

package orchestrator

import (
	"encoding/json"

	"github.com/google/uuid"
)

// State is the mutable state of one run. It has exactly one writer at a
// time (the currently executing phase) and is never shared across runs.
type State struct {
	// RunID identifies this run in logs and the transcript store.
	RunID string
	// CorrelationID ties the run's operations back to the originating
	// event. Opaque to the loop except for the repair-by-injection step.
	CorrelationID string
	// SourceEvent is the raw inbound event, passed through unmodified
	// and never inspected by the loop.
	SourceEvent json.RawMessage
	// Messages is the append-only conversation history of this run.
	Messages []Message
}

// NewState creates the state for one run, seeding the history with the
// initial user message.
func NewState(correlationID string, sourceEvent json.RawMessage, seedText string) *State {
	return &State{
		RunID:         uuid.New().String(),
		CorrelationID: correlationID,
		SourceEvent:   sourceEvent,
		Messages:      []Message{UserMessage{Text: seedText}},
	}
}

// Append adds messages to the run's history.
func (s *State) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}
