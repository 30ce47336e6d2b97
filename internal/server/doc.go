// Package server exposes the HTTP surface of steward.
//
// # Endpoints
//
// GET /healthz reports liveness.
//
// POST /webhook/mail receives Microsoft Graph change notifications.
// Subscription validation requests (validationToken query parameter)
// are echoed back as plain text. Real notifications are verified
// against the configured client state, deduplicated by message id, and
// then drive one orchestration run each. The final answer is returned
// in the response and, when the mail collaborator is configured, also
// sent as a reply to the original message.
package server
