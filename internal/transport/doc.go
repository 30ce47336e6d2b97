// ABOUTME: Invocation transport for remote tool backends.
// ABOUTME: Sends opaque request payloads to a named backend and returns its response bytes.

// Package transport carries request/response payloads between steward and
// its tool backends. It knows nothing about operation semantics; the
// envelope layered on top lives in internal/rip.
package transport
