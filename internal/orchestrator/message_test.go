// ABOUTME: Tests for the history filter applied before each decide phase.
// ABOUTME: Validates orphan-result dropping and filter idempotence.

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterHistory_CleanHistoryUnchanged(t *testing.T) {
	history := []Message{
		UserMessage{Text: "mail arrived"},
		AssistantMessage{RequestedCalls: []OperationCall{{ID: "c1", Name: "classify"}}},
		OperationResult{CallID: "c1", OperationName: "classify", Text: "category=support"},
		AssistantMessage{Text: "done"},
	}

	filtered := FilterHistory(history)
	assert.Equal(t, history, filtered)
}

func TestFilterHistory_DropsOrphanResult(t *testing.T) {
	history := []Message{
		OperationResult{CallID: "ghost", OperationName: "classify", Text: "orphan"},
		UserMessage{Text: "mail arrived"},
	}

	filtered := FilterHistory(history)
	require.Len(t, filtered, 1)
	assert.Equal(t, UserMessage{Text: "mail arrived"}, filtered[0])
}

func TestFilterHistory_DropsResultWithUnknownCallID(t *testing.T) {
	history := []Message{
		AssistantMessage{RequestedCalls: []OperationCall{{ID: "c1", Name: "classify"}}},
		OperationResult{CallID: "other", OperationName: "classify", Text: "mismatched"},
	}

	filtered := FilterHistory(history)
	require.Len(t, filtered, 1)
}

func TestFilterHistory_MultipleAssistantsCollectRequests(t *testing.T) {
	history := []Message{
		AssistantMessage{RequestedCalls: []OperationCall{{ID: "c1", Name: "classify"}}},
		AssistantMessage{RequestedCalls: []OperationCall{{ID: "c2", Name: "create_folder"}}},
		OperationResult{CallID: "c1", OperationName: "classify", Text: "ok"},
		OperationResult{CallID: "c2", OperationName: "create_folder", Text: "ok"},
	}

	filtered := FilterHistory(history)
	assert.Len(t, filtered, 4)
}

func TestFilterHistory_UserTurnClosesPendingCalls(t *testing.T) {
	history := []Message{
		AssistantMessage{RequestedCalls: []OperationCall{{ID: "c1", Name: "classify"}}},
		UserMessage{Text: "never mind"},
		OperationResult{CallID: "c1", OperationName: "classify", Text: "late"},
	}

	filtered := FilterHistory(history)
	require.Len(t, filtered, 2)
	_, isResult := filtered[len(filtered)-1].(OperationResult)
	assert.False(t, isResult)
}

func TestFilterHistory_DuplicateResultForSameCallDropped(t *testing.T) {
	history := []Message{
		AssistantMessage{RequestedCalls: []OperationCall{{ID: "c1", Name: "classify"}}},
		OperationResult{CallID: "c1", OperationName: "classify", Text: "first"},
		OperationResult{CallID: "c1", OperationName: "classify", Text: "second"},
	}

	filtered := FilterHistory(history)
	require.Len(t, filtered, 2)
	res, ok := filtered[1].(OperationResult)
	require.True(t, ok)
	assert.Equal(t, "first", res.Text)
}

func TestFilterHistory_Idempotent(t *testing.T) {
	history := []Message{
		OperationResult{CallID: "ghost", Text: "orphan"},
		UserMessage{Text: "seed"},
		AssistantMessage{RequestedCalls: []OperationCall{{ID: "c1", Name: "classify"}}},
		OperationResult{CallID: "c1", OperationName: "classify", Text: "ok"},
		OperationResult{CallID: "c1", OperationName: "classify", Text: "dup"},
	}

	once := FilterHistory(history)
	twice := FilterHistory(once)
	assert.Equal(t, once, twice)
}

func TestFilterHistory_Empty(t *testing.T) {
	assert.Empty(t, FilterHistory(nil))
}
