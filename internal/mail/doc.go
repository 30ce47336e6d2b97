// Package mail talks to Microsoft Graph on behalf of the run loop.
//
// # Overview
//
// The package fetches the message a notification points at, normalizes
// its body into plain text the oracle can work with, and sends replies
// rendered from the oracle's markdown answer.
//
// # Authentication
//
// Tokens come from the client-credentials flow against the tenant's
// token endpoint. The client caches the token and refreshes it when it
// expires or when Graph answers 401.
//
// # Normalization
//
// HTML bodies are flattened to text, then signatures, legal disclaimers,
// and sent-from-my-phone tails are stripped so the model sees the part
// a human actually wrote.
package mail
