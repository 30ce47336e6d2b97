// ABOUTME: Gemini-backed oracle over the google.golang.org/genai SDK.
// ABOUTME: Owns client construction and the Decide round trip.

package oracle

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/oakmail/steward/internal/orchestrator"
	"github.com/oakmail/steward/internal/registry"
)

// DefaultSystemPrompt frames the model's job when the config does not
// provide one.
const DefaultSystemPrompt = "You are a mail-processing assistant. " +
	"A notification about an inbound mail message starts each conversation. " +
	"Use only the provided operations to act on the message, then summarize the outcome."

// contentGenerator is the slice of the genai client the oracle uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// sdkGenerator wraps the real SDK client.
type sdkGenerator struct {
	client *genai.Client
}

func (g *sdkGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return g.client.Models.GenerateContent(ctx, model, contents, config)
}

// Gemini implements the orchestrator's Oracle interface on the Gemini API.
type Gemini struct {
	generator    contentGenerator
	model        string
	systemPrompt string
	logger       *slog.Logger
}

// NewGemini creates a Gemini oracle with a real SDK client.
func NewGemini(ctx context.Context, apiKey, model, systemPrompt string, logger *slog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return newGemini(&sdkGenerator{client: client}, model, systemPrompt, logger), nil
}

// newGemini wires a Gemini oracle around any content generator.
func newGemini(generator contentGenerator, model, systemPrompt string, logger *slog.Logger) *Gemini {
	if logger == nil {
		logger = slog.Default()
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Gemini{
		generator:    generator,
		model:        model,
		systemPrompt: systemPrompt,
		logger:       logger.With("component", "oracle"),
	}
}

// Decide presents the history and catalog to the model and returns its
// decision: a final answer, or one or more requested operation calls.
func (g *Gemini) Decide(ctx context.Context, history []orchestrator.Message, operations []registry.OperationDescriptor) (orchestrator.AssistantMessage, error) {
	contents := toContents(history)

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(g.systemPrompt)},
		},
	}
	if tools := toTools(operations); tools != nil {
		config.Tools = tools
	}

	resp, err := g.generator.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return orchestrator.AssistantMessage{}, fmt.Errorf("generate content: %w", err)
	}

	decision, err := fromResponse(resp)
	if err != nil {
		return orchestrator.AssistantMessage{}, err
	}

	g.logger.Debug("oracle decided",
		"requested_calls", len(decision.RequestedCalls),
		"answer_len", len(decision.Text),
	)
	return decision, nil
}
