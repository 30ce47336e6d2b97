// ABOUTME: Remote Invocation Protocol envelope and client.
// ABOUTME: Speaks list_operations and call_operation over an Invoker transport.

// Package rip implements the request/response envelope steward uses to
// talk to its tool backends. A backend exposes exactly two methods:
// list_operations, which advertises the operations it can perform, and
// call_operation, which executes one of them. Backend-declared errors
// decode into *OperationError values so callers can reason about
// failures instead of crashing on them.
package rip
