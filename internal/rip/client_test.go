// ABOUTME: Tests for the RIP client covering both methods and error decoding.
// ABOUTME: Uses a scripted fake invoker; no real transport is involved.

package rip

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmail/steward/internal/transport"
)

// fakeInvoker returns a canned response and records the last request.
type fakeInvoker struct {
	response    []byte
	err         error
	lastBackend string
	lastPayload []byte
}

func (f *fakeInvoker) Invoke(_ context.Context, backendID string, payload []byte) ([]byte, error) {
	f.lastBackend = backendID
	f.lastPayload = payload
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func newTestClient(inv transport.Invoker) *Client {
	return NewClient(inv, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_ListOperations(t *testing.T) {
	inv := &fakeInvoker{response: []byte(`{
		"result": {
			"operations": [
				{
					"name": "classify",
					"description": "Classify a mail message",
					"inputSchema": {
						"type": "object",
						"properties": {"message_id": {"type": "string", "description": "Mail id"}},
						"required": ["message_id"]
					}
				}
			]
		}
	}`)}

	ops, err := newTestClient(inv).ListOperations(context.Background(), "classifier")
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "classify", ops[0].Name)
	assert.Equal(t, []string{"message_id"}, ops[0].InputSchema.Required)
	assert.Contains(t, ops[0].InputSchema.Properties, "message_id")

	// The envelope on the wire carries the right method.
	var req Request
	require.NoError(t, json.Unmarshal(inv.lastPayload, &req))
	assert.Equal(t, MethodListOperations, req.Method)
	assert.Equal(t, "classifier", inv.lastBackend)
}

func TestClient_ListOperations_Empty(t *testing.T) {
	inv := &fakeInvoker{response: []byte(`{"result": {"operations": []}}`)}

	ops, err := newTestClient(inv).ListOperations(context.Background(), "idle")
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestClient_CallOperation(t *testing.T) {
	inv := &fakeInvoker{response: []byte(`{"result": {"content": [{"type": "text", "text": "category=support"}]}}`)}

	text, err := newTestClient(inv).CallOperation(context.Background(), "classifier", "classify",
		map[string]any{"message_id": "msg-42"})
	require.NoError(t, err)
	assert.Equal(t, "category=support", text)

	var req struct {
		Method string              `json:"method"`
		Params CallOperationParams `json:"params"`
	}
	require.NoError(t, json.Unmarshal(inv.lastPayload, &req))
	assert.Equal(t, MethodCallOperation, req.Method)
	assert.Equal(t, "classify", req.Params.Name)
	assert.Equal(t, "msg-42", req.Params.Arguments["message_id"])
}

func TestClient_CallOperation_EmptyContent(t *testing.T) {
	inv := &fakeInvoker{response: []byte(`{"result": {"content": []}}`)}

	text, err := newTestClient(inv).CallOperation(context.Background(), "classifier", "classify", nil)
	require.NoError(t, err)
	assert.Equal(t, NoResponseText, text)
}

func TestClient_CallOperation_ErrorEnvelope(t *testing.T) {
	inv := &fakeInvoker{response: []byte(`{"error": {"code": -32602, "message": "message_id is required"}}`)}

	_, err := newTestClient(inv).CallOperation(context.Background(), "classifier", "classify", nil)
	require.Error(t, err)

	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, CodeInvalidParams, opErr.Code)
	assert.Equal(t, "message_id is required", opErr.Message)
}

func TestClient_CallOperation_TransportErrorPassesThrough(t *testing.T) {
	terr := &transport.TransportError{Backend: "classifier", Kind: transport.KindTimeout}
	inv := &fakeInvoker{err: terr}

	_, err := newTestClient(inv).CallOperation(context.Background(), "classifier", "classify", nil)
	require.Error(t, err)

	var got *transport.TransportError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, transport.KindTimeout, got.Kind)
}

func TestClient_MalformedResponse(t *testing.T) {
	inv := &fakeInvoker{response: []byte(`not json`)}

	_, err := newTestClient(inv).ListOperations(context.Background(), "classifier")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding")
}
