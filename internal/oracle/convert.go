// ABOUTME: Conversions between orchestrator messages and genai wire types.
// ABOUTME: Maps descriptors to function declarations and tool calls back to OperationCalls.

package oracle

import (
	"errors"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/oakmail/steward/internal/orchestrator"
	"github.com/oakmail/steward/internal/registry"
)

// toContents converts run history into genai contents. Operation
// results travel as function responses on a user-role content, matching
// how the model expects tool output back.
func toContents(history []orchestrator.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))

	for _, msg := range history {
		switch m := msg.(type) {
		case orchestrator.UserMessage:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{genai.NewPartFromText(m.Text)},
			})
		case orchestrator.AssistantMessage:
			parts := make([]*genai.Part, 0, len(m.RequestedCalls)+1)
			if m.Text != "" {
				parts = append(parts, genai.NewPartFromText(m.Text))
			}
			for _, call := range m.RequestedCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						Name: call.Name,
						Args: call.Arguments,
					},
				})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case orchestrator.OperationResult:
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     m.OperationName,
						Response: map[string]any{"content": m.Text},
					},
				}},
			})
		}
	}
	return contents
}

// toTools converts the operation catalog into function declarations.
// Every field is declared as a string, per the text-only descriptor model.
func toTools(operations []registry.OperationDescriptor) []*genai.Tool {
	if len(operations) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(operations))
	for _, op := range operations {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(op.Fields)),
		}
		for name, field := range op.Fields {
			schema.Properties[name] = &genai.Schema{
				Type:        genai.TypeString,
				Description: field.Description,
			}
		}
		if required := op.RequiredFields(); len(required) > 0 {
			schema.Required = required
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        op.Name,
			Description: op.Description,
			Parameters:  schema,
		})
	}

	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// fromResponse converts a model response into an assistant decision.
// The model does not always supply call ids, so missing ones get a uuid.
func fromResponse(resp *genai.GenerateContentResponse) (orchestrator.AssistantMessage, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return orchestrator.AssistantMessage{}, errors.New("no candidates in model response")
	}

	var decision orchestrator.AssistantMessage
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			decision.Text += part.Text
		}
		if part.FunctionCall != nil {
			id := part.FunctionCall.ID
			if id == "" {
				id = uuid.New().String()
			}
			decision.RequestedCalls = append(decision.RequestedCalls, orchestrator.OperationCall{
				ID:        id,
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		}
	}
	return decision, nil
}
