// ABOUTME: Reasoning oracle boundary and its Gemini implementation.
// ABOUTME: Converts run history and the operation catalog to model calls and back.

// Package oracle adapts a large language model to the orchestrator's
// Oracle interface: given a message history and the operation catalog,
// return either a final answer or a list of requested operation calls.
// The loop owns framing; everything in here is translation.
package oracle
