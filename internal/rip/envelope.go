// ABOUTME: Wire types for the Remote Invocation Protocol.
// ABOUTME: Defines the method envelope, error object, and operation schemas.

package rip

import (
	"encoding/json"
	"fmt"
)

// Protocol methods.
const (
	MethodListOperations = "list_operations"
	MethodCallOperation  = "call_operation"
)

// Standard envelope error codes (JSON-RPC numbering).
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// NoResponseText is returned from CallOperation when a backend replies
// with an empty content list. The decide phase reasons over text, so an
// empty result must still read as something.
const NoResponseText = "no response"

// Request is the envelope sent to a backend.
type Request struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Response is the envelope a backend replies with. Exactly one of
// Result and Error is set.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is a backend-declared failure inside a well-formed envelope.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// OperationError is the decoded form of an error envelope. It is a
// value-level failure: the backend answered, and the answer was "no".
type OperationError struct {
	Code    int
	Message string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation error (%d): %s", e.Code, e.Message)
}

// PropertySchema describes one declared input field of an operation.
type PropertySchema struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// InputSchema is the backend-declared schema for an operation's arguments.
type InputSchema struct {
	Type       string                    `json:"type,omitempty"`
	Properties map[string]PropertySchema `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

// OperationInfo is one entry in a list_operations result.
type OperationInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// ListOperationsResult is the result payload of list_operations.
type ListOperationsResult struct {
	Operations []OperationInfo `json:"operations"`
}

// CallOperationParams are the params of call_operation.
type CallOperationParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ContentItem is one piece of a call_operation result.
type ContentItem struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// CallOperationResult is the result payload of call_operation.
type CallOperationResult struct {
	Content []ContentItem `json:"content"`
}
