// ABOUTME: Dynamic operation registry discovered from tool backends at startup.
// ABOUTME: Merges every backend's advertised operations into one immutable namespace.

// Package registry builds the operation catalog steward hands to its
// oracle. Discovery fans out to every configured backend, tolerates
// individual backend failures, and produces an immutable Registry that
// maps operation names to typed descriptors and their owning backend.
package registry
