// ABOUTME: Message variants that make up a run's conversation history.
// ABOUTME: Includes the orphan-result filter applied before every decide phase.

package orchestrator

// Message is one turn in a run's conversation. The concrete variants
// are UserMessage, AssistantMessage, and OperationResult.
type Message interface {
	isMessage()
}

// UserMessage is external input, including the seed built from the
// inbound event.
type UserMessage struct {
	Text string
}

func (UserMessage) isMessage() {}

// OperationCall is one operation the oracle asked for. Produced during
// a decide phase, consumed exactly once by the following act phase.
type OperationCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// AssistantMessage is an oracle decision. With RequestedCalls empty it
// is the run's final answer; otherwise it drives an act phase.
type AssistantMessage struct {
	Text           string
	RequestedCalls []OperationCall
}

func (AssistantMessage) isMessage() {}

// OperationResult is the outcome of one OperationCall, whether it ran,
// failed, or was rejected before dispatch.
type OperationResult struct {
	CallID        string
	OperationName string
	Text          string
}

func (OperationResult) isMessage() {}

// FilterHistory drops OperationResults that have no preceding
// unresolved request. The oracle must never see a result it cannot tie
// back to a call, so a malformed history is repaired rather than
// replayed as-is. Filtering an already clean history is a no-op.
func FilterHistory(history []Message) []Message {
	filtered := make([]Message, 0, len(history))
	pending := make(map[string]bool)

	for _, msg := range history {
		switch m := msg.(type) {
		case AssistantMessage:
			for _, call := range m.RequestedCalls {
				pending[call.ID] = true
			}
			filtered = append(filtered, m)
		case OperationResult:
			if !pending[m.CallID] {
				continue
			}
			delete(pending, m.CallID)
			filtered = append(filtered, m)
		default:
			// A user turn closes the current act phase; any calls still
			// unanswered stay unanswered.
			pending = make(map[string]bool)
			filtered = append(filtered, msg)
		}
	}
	return filtered
}
