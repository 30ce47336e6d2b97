// ABOUTME: Graph change notification webhook: validation, dedupe, and run kickoff.
// ABOUTME: Each accepted notification drives one orchestration run to completion.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/oakmail/steward/internal/mail"
	"github.com/oakmail/steward/internal/orchestrator"
	"github.com/oakmail/steward/internal/store"
)

// messageIDPattern pulls the message id out of a notification resource
// path like Users/abc/Messages('AAMkAD...').
var messageIDPattern = regexp.MustCompile(`(?i)messages\('([^']+)'\)`)

const maxWebhookBody = 1 << 20

// notification is the slice of a Graph change notification we act on.
type notification struct {
	Resource    string `json:"resource"`
	ClientState string `json:"clientState"`
}

type webhookResponse struct {
	RunID     string `json:"run_id"`
	MessageID string `json:"message_id"`
	Answer    string `json:"answer"`
}

func (s *Server) handleMailWebhook(w http.ResponseWriter, r *http.Request) {
	// Subscription validation handshake: echo the token as plain text.
	if token := r.URL.Query().Get("validationToken"); token != "" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, token)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body")
		return
	}

	note, raw, err := decodeNotification(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.opts.ClientState != "" && note.ClientState != s.opts.ClientState {
		s.logger.Warn("notification rejected: client state mismatch")
		writeError(w, http.StatusForbidden, "client state mismatch")
		return
	}

	match := messageIDPattern.FindStringSubmatch(note.Resource)
	if match == nil {
		s.logger.Warn("notification rejected: no message id", "resource", note.Resource)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("no message id in resource %q", note.Resource))
		return
	}
	messageID := match[1]

	if s.cache != nil && s.cache.CheckAndMark(messageID) {
		s.logger.Info("duplicate notification skipped", "message_id", messageID)
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":     "duplicate",
			"message_id": messageID,
		})
		return
	}

	seed, msg, ignored := s.buildSeed(r.Context(), messageID)
	if ignored {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":     "ignored",
			"message_id": messageID,
		})
		return
	}

	state := orchestrator.NewState(messageID, raw, seed)
	if err := s.store.CreateRun(r.Context(), &store.Run{
		ID:            state.RunID,
		CorrelationID: messageID,
	}); err != nil {
		s.logger.Error("creating run record", "error", err)
	}
	// The loop records what it appends; the seed is ours to record.
	if err := s.store.SaveMessage(r.Context(), state.RunID, orchestrator.UserMessage{Text: seed}); err != nil {
		s.logger.Error("recording seed message", "error", err)
	}

	s.logger.Info("run started", "run_id", state.RunID, "message_id", messageID)

	answer, err := s.loop.Run(r.Context(), state)
	if err != nil {
		s.logger.Error("run failed", "run_id", state.RunID, "error", err)
		if ferr := s.store.FinishRun(r.Context(), state.RunID, store.RunStatusFailed, ""); ferr != nil {
			s.logger.Error("finishing run record", "error", ferr)
		}
		writeError(w, http.StatusInternalServerError, "orchestration failed")
		return
	}

	if err := s.store.FinishRun(r.Context(), state.RunID, store.RunStatusCompleted, answer.Text); err != nil {
		s.logger.Error("finishing run record", "error", err)
	}

	if s.mailbox != nil && msg != nil {
		s.sendReply(r.Context(), messageID, answer.Text)
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		RunID:     state.RunID,
		MessageID: messageID,
		Answer:    answer.Text,
	})
}

// decodeNotification accepts either a Graph envelope with a value array
// or a bare notification object.
func decodeNotification(body []byte) (notification, json.RawMessage, error) {
	var envelope struct {
		Value []json.RawMessage `json:"value"`
	}
	raw := json.RawMessage(body)
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Value) > 0 {
		raw = envelope.Value[0]
	}

	var note notification
	if err := json.Unmarshal(raw, &note); err != nil {
		return notification{}, nil, fmt.Errorf("decoding notification: %v", err)
	}
	if note.Resource == "" {
		return notification{}, nil, fmt.Errorf("notification carries no resource")
	}
	return note, raw, nil
}

// buildSeed produces the opening user message for a run. With a mailbox
// configured the fetched mail content enriches the seed; fetch failures
// degrade to an id-only seed. ignored is true when the sender is outside
// the allowed domain.
func (s *Server) buildSeed(ctx context.Context, messageID string) (seed string, msg *mail.EmailMessage, ignored bool) {
	seed = fmt.Sprintf(
		"A notification arrived for a new mail message with id %q. "+
			"Decide which operation should process this message and invoke it with the message_id.",
		messageID,
	)
	if s.mailbox == nil {
		return seed, nil, false
	}

	fetched, err := s.mailbox.FetchMessage(ctx, messageID)
	if err != nil {
		s.logger.Warn("fetching message for seed", "message_id", messageID, "error", err)
		return seed, nil, false
	}

	if !mail.SenderAllowed(fetched.Sender, s.opts.AllowedSenderDomain) {
		s.logger.Info("sender outside allowed domain, skipping",
			"message_id", messageID, "sender", fetched.Sender)
		return "", nil, true
	}

	seed = fmt.Sprintf(
		"A notification arrived for a new mail message with id %q.\n"+
			"From: %s\nSubject: %s\n\n%s\n\n"+
			"Decide which operation should process this message and invoke it with the message_id.",
		messageID, fetched.Sender, fetched.Subject, fetched.BodyText,
	)
	return seed, fetched, false
}

// sendReply renders the answer as HTML and replies to the original
// message. Failures are logged, never fatal to the run.
func (s *Server) sendReply(ctx context.Context, messageID, answer string) {
	html, err := mail.RenderReplyHTML(answer)
	if err != nil {
		s.logger.Error("rendering reply", "message_id", messageID, "error", err)
		return
	}
	if err := s.mailbox.SendReply(ctx, messageID, html); err != nil {
		s.logger.Error("sending reply", "message_id", messageID, "error", err)
	}
}
