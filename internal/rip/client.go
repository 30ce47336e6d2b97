// ABOUTME: Protocol client that layers the RIP envelope on an Invoker transport.
// ABOUTME: Owns envelope encoding, response decoding, and error-envelope conversion.

package rip

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/oakmail/steward/internal/transport"
)

// Client speaks the Remote Invocation Protocol to any backend reachable
// through its transport. It is safe for concurrent use.
type Client struct {
	invoker transport.Invoker
	logger  *slog.Logger
}

// NewClient creates a protocol client over the given transport.
func NewClient(invoker transport.Invoker, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		invoker: invoker,
		logger:  logger.With("component", "rip"),
	}
}

// ListOperations asks a backend which operations it exposes. An empty
// list is a valid answer and is logged, not treated as a failure.
func (c *Client) ListOperations(ctx context.Context, backendID string) ([]OperationInfo, error) {
	raw, err := c.roundTrip(ctx, backendID, Request{Method: MethodListOperations})
	if err != nil {
		return nil, err
	}

	var result ListOperationsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding list_operations result from %q: %w", backendID, err)
	}

	if len(result.Operations) == 0 {
		c.logger.Warn("backend advertises no operations", "backend", backendID)
	}
	return result.Operations, nil
}

// CallOperation executes a named operation on a backend and returns the
// text of the first content item. Error envelopes come back as
// *OperationError; transport failures as *transport.TransportError.
func (c *Client) CallOperation(ctx context.Context, backendID, name string, arguments map[string]any) (string, error) {
	raw, err := c.roundTrip(ctx, backendID, Request{
		Method: MethodCallOperation,
		Params: CallOperationParams{Name: name, Arguments: arguments},
	})
	if err != nil {
		return "", err
	}

	var result CallOperationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("decoding call_operation result from %q: %w", backendID, err)
	}

	if len(result.Content) == 0 {
		c.logger.Warn("operation returned no content", "backend", backendID, "operation", name)
		return NoResponseText, nil
	}
	return result.Content[0].Text, nil
}

// roundTrip sends one envelope and returns the raw result payload.
func (c *Client) roundTrip(ctx context.Context, backendID string, req Request) (json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", req.Method, err)
	}

	respBytes, err := c.invoker.Invoke(ctx, backendID, payload)
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("decoding %s response from %q: %w", req.Method, backendID, err)
	}

	if resp.Error != nil {
		return nil, &OperationError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return resp.Result, nil
}
