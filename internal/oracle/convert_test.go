// ABOUTME: Tests for the genai conversions and the Gemini Decide round trip.
// ABOUTME: Uses a stubbed content generator; no API traffic.

package oracle

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/oakmail/steward/internal/orchestrator"
	"github.com/oakmail/steward/internal/registry"
)

type stubGenerator struct {
	resp         *genai.GenerateContentResponse
	err          error
	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig
}

func (s *stubGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.lastContents = contents
	s.lastConfig = config
	return s.resp, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{genai.NewPartFromText(text)},
			},
		}},
	}
}

func TestToContents_Mapping(t *testing.T) {
	history := []orchestrator.Message{
		orchestrator.UserMessage{Text: "mail arrived"},
		orchestrator.AssistantMessage{
			Text: "classifying",
			RequestedCalls: []orchestrator.OperationCall{
				{ID: "c1", Name: "classify", Arguments: map[string]any{"message_id": "m"}},
			},
		},
		orchestrator.OperationResult{CallID: "c1", OperationName: "classify", Text: "category=support"},
	}

	contents := toContents(history)
	require.Len(t, contents, 3)

	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "mail arrived", contents[0].Parts[0].Text)

	assert.Equal(t, "model", contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.Equal(t, "classifying", contents[1].Parts[0].Text)
	require.NotNil(t, contents[1].Parts[1].FunctionCall)
	assert.Equal(t, "classify", contents[1].Parts[1].FunctionCall.Name)

	require.NotNil(t, contents[2].Parts[0].FunctionResponse)
	assert.Equal(t, "classify", contents[2].Parts[0].FunctionResponse.Name)
	assert.Equal(t, "category=support", contents[2].Parts[0].FunctionResponse.Response["content"])
}

func TestToContents_SkipsEmptyAssistant(t *testing.T) {
	contents := toContents([]orchestrator.Message{orchestrator.AssistantMessage{}})
	assert.Empty(t, contents)
}

func TestToTools_Declarations(t *testing.T) {
	ops := []registry.OperationDescriptor{
		{
			Name:        "classify",
			Description: "Classify a mail message",
			BackendID:   "classifier",
			Fields: map[string]registry.Field{
				"message_id": {Description: "Mail id", Required: true},
				"hint":       {Description: "Optional hint"},
			},
		},
	}

	tools := toTools(ops)
	require.Len(t, tools, 1)
	require.Len(t, tools[0].FunctionDeclarations, 1)

	decl := tools[0].FunctionDeclarations[0]
	assert.Equal(t, "classify", decl.Name)
	assert.Equal(t, genai.TypeObject, decl.Parameters.Type)
	assert.Equal(t, []string{"message_id"}, decl.Parameters.Required)

	require.Contains(t, decl.Parameters.Properties, "message_id")
	assert.Equal(t, genai.TypeString, decl.Parameters.Properties["message_id"].Type)
	assert.Equal(t, "Mail id", decl.Parameters.Properties["message_id"].Description)
}

func TestToTools_EmptyCatalog(t *testing.T) {
	assert.Nil(t, toTools(nil))
}

func TestFromResponse_FinalAnswer(t *testing.T) {
	decision, err := fromResponse(textResponse("all done"))
	require.NoError(t, err)
	assert.Equal(t, "all done", decision.Text)
	assert.Empty(t, decision.RequestedCalls)
}

func TestFromResponse_FunctionCalls(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: "model",
				Parts: []*genai.Part{
					{FunctionCall: &genai.FunctionCall{Name: "classify", Args: map[string]any{"message_id": "m"}}},
					{FunctionCall: &genai.FunctionCall{Name: "create_folder", Args: map[string]any{"name": "support"}}},
				},
			},
		}},
	}

	decision, err := fromResponse(resp)
	require.NoError(t, err)
	require.Len(t, decision.RequestedCalls, 2)
	assert.Equal(t, "classify", decision.RequestedCalls[0].Name)
	assert.Equal(t, "create_folder", decision.RequestedCalls[1].Name)
	// Ids are assigned when the model omits them.
	assert.NotEmpty(t, decision.RequestedCalls[0].ID)
	assert.NotEqual(t, decision.RequestedCalls[0].ID, decision.RequestedCalls[1].ID)
}

func TestFromResponse_NoCandidates(t *testing.T) {
	_, err := fromResponse(&genai.GenerateContentResponse{})
	assert.Error(t, err)
}

func TestGemini_Decide(t *testing.T) {
	stub := &stubGenerator{resp: textResponse("final answer")}
	g := newGemini(stub, "gemini-2.0-flash", "", discardLogger())

	history := []orchestrator.Message{orchestrator.UserMessage{Text: "seed"}}
	ops := []registry.OperationDescriptor{{Name: "classify", Fields: map[string]registry.Field{}}}

	decision, err := g.Decide(context.Background(), history, ops)
	require.NoError(t, err)
	assert.Equal(t, "final answer", decision.Text)

	// System prompt and tools reached the model.
	require.NotNil(t, stub.lastConfig)
	require.NotNil(t, stub.lastConfig.SystemInstruction)
	assert.Contains(t, stub.lastConfig.SystemInstruction.Parts[0].Text, "mail-processing")
	require.Len(t, stub.lastConfig.Tools, 1)
	require.Len(t, stub.lastContents, 1)
}

func TestGemini_DecideError(t *testing.T) {
	stub := &stubGenerator{err: assert.AnError}
	g := newGemini(stub, "gemini-2.0-flash", "", discardLogger())

	_, err := g.Decide(context.Background(), nil, nil)
	assert.Error(t, err)
}
