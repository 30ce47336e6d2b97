// ABOUTME: Invoker interface and TransportError type shared by all transports.
// ABOUTME: Defines the synchronous invoke contract keyed by backend name.

package transport

import (
	"context"
	"fmt"
)

// Kind classifies transport failures so callers can describe them
// without inspecting the underlying error.
type Kind int

const (
	// KindUnreachable means the backend could not be resolved or contacted.
	KindUnreachable Kind = iota
	// KindTimeout means the call exceeded its deadline.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	default:
		return "unreachable"
	}
}

// TransportError reports a failed round trip to a backend. It never
// represents an application-level error; those travel inside the
// response envelope and are decoded by internal/rip.
type TransportError struct {
	Backend string
	Kind    Kind
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend %q %s: %v", e.Backend, e.Kind, e.Err)
	}
	return fmt.Sprintf("backend %q %s", e.Backend, e.Kind)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Invoker sends a request payload to a named backend and returns the
// response payload. Implementations must honor ctx cancellation and
// return *TransportError for delivery failures. No retries happen at
// this layer; retry policy belongs to the caller.
type Invoker interface {
	Invoke(ctx context.Context, backendID string, payload []byte) ([]byte, error)
}
