// ABOUTME: Tests for the mail webhook: validation, dedupe, seeding, and replies.
// ABOUTME: Uses a scripted runner and mailbox; no real oracle or Graph traffic.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmail/steward/internal/dedupe"
	"github.com/oakmail/steward/internal/mail"
	"github.com/oakmail/steward/internal/orchestrator"
	"github.com/oakmail/steward/internal/store"
)

type fakeRunner struct {
	answer    orchestrator.AssistantMessage
	err       error
	lastState *orchestrator.State
	calls     int
}

func (f *fakeRunner) Run(_ context.Context, state *orchestrator.State) (orchestrator.AssistantMessage, error) {
	f.calls++
	f.lastState = state
	return f.answer, f.err
}

type fakeMailbox struct {
	msg       *mail.EmailMessage
	fetchErr  error
	replies   []string
	replyToID string
}

func (f *fakeMailbox) FetchMessage(_ context.Context, messageID string) (*mail.EmailMessage, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.msg, nil
}

func (f *fakeMailbox) SendReply(_ context.Context, messageID, htmlBody string) error {
	f.replyToID = messageID
	f.replies = append(f.replies, htmlBody)
	return nil
}

type recordingStore struct {
	store.NopStore
	created  []*store.Run
	finished map[string]string // run id -> status
}

func newRecordingStore() *recordingStore {
	return &recordingStore{finished: make(map[string]string)}
}

func (r *recordingStore) CreateRun(_ context.Context, run *store.Run) error {
	r.created = append(r.created, run)
	return nil
}

func (r *recordingStore) FinishRun(_ context.Context, runID, status, finalAnswer string) error {
	r.finished[runID] = status
	return nil
}

func testServer(t *testing.T, loop runner, st store.Store, mb Mailbox, opts Options) *Server {
	t.Helper()
	if st == nil {
		st = store.NopStore{}
	}
	cache := dedupe.New(time.Minute, 16)
	t.Cleanup(cache.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(loop, st, cache, mb, opts, logger)
}

func notificationBody(resource, clientState string) string {
	body, _ := json.Marshal(map[string]any{
		"value": []map[string]any{{
			"resource":    resource,
			"clientState": clientState,
		}},
	})
	return string(body)
}

func postWebhook(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/mail", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestWebhook_ValidationToken(t *testing.T) {
	s := testServer(t, &fakeRunner{}, nil, nil, Options{})

	req := httptest.NewRequest(http.MethodPost, "/webhook/mail?validationToken=abc123", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestWebhook_RunCompletes(t *testing.T) {
	loop := &fakeRunner{answer: orchestrator.AssistantMessage{Text: "filed under Support"}}
	st := newRecordingStore()
	s := testServer(t, loop, st, nil, Options{})

	rec := postWebhook(s, notificationBody(`Users/u1/Messages('msg-42')`, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp webhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "msg-42", resp.MessageID)
	assert.Equal(t, "filed under Support", resp.Answer)
	assert.NotEmpty(t, resp.RunID)

	// The run was seeded with the extracted message id.
	require.NotNil(t, loop.lastState)
	assert.Equal(t, "msg-42", loop.lastState.CorrelationID)
	require.Len(t, loop.lastState.Messages, 1)
	seed := loop.lastState.Messages[0].(orchestrator.UserMessage)
	assert.Contains(t, seed.Text, "msg-42")

	require.Len(t, st.created, 1)
	assert.Equal(t, "msg-42", st.created[0].CorrelationID)
	assert.Equal(t, store.RunStatusCompleted, st.finished[resp.RunID])
}

func TestWebhook_BareNotificationObject(t *testing.T) {
	loop := &fakeRunner{answer: orchestrator.AssistantMessage{Text: "ok"}}
	s := testServer(t, loop, nil, nil, Options{})

	rec := postWebhook(s, `{"resource": "Users/u1/Messages('msg-7')"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, loop.calls)
}

func TestWebhook_UnextractableMessageID(t *testing.T) {
	loop := &fakeRunner{}
	s := testServer(t, loop, nil, nil, Options{})

	rec := postWebhook(s, notificationBody("Users/u1/mailFolders/inbox", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, loop.calls)
}

func TestWebhook_MissingResource(t *testing.T) {
	s := testServer(t, &fakeRunner{}, nil, nil, Options{})
	rec := postWebhook(s, `{"value": [{"clientState": "x"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_MalformedBody(t *testing.T) {
	s := testServer(t, &fakeRunner{}, nil, nil, Options{})
	rec := postWebhook(s, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_ClientStateMismatch(t *testing.T) {
	loop := &fakeRunner{}
	s := testServer(t, loop, nil, nil, Options{ClientState: "expected"})

	rec := postWebhook(s, notificationBody(`Messages('m1')`, "wrong"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, loop.calls)

	rec = postWebhook(s, notificationBody(`Messages('m1')`, "expected"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, loop.calls)
}

func TestWebhook_DuplicateNotification(t *testing.T) {
	loop := &fakeRunner{answer: orchestrator.AssistantMessage{Text: "done"}}
	s := testServer(t, loop, nil, nil, Options{})

	rec := postWebhook(s, notificationBody(`Messages('msg-1')`, ""))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postWebhook(s, notificationBody(`Messages('msg-1')`, ""))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate")
	assert.Equal(t, 1, loop.calls)
}

func TestWebhook_RunFailure(t *testing.T) {
	loop := &fakeRunner{err: errors.New("oracle unavailable")}
	st := newRecordingStore()
	s := testServer(t, loop, st, nil, Options{})

	rec := postWebhook(s, notificationBody(`Messages('msg-1')`, ""))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	require.Len(t, st.created, 1)
	assert.Equal(t, store.RunStatusFailed, st.finished[st.created[0].ID])
}

func TestWebhook_MailboxEnrichesSeed(t *testing.T) {
	loop := &fakeRunner{answer: orchestrator.AssistantMessage{Text: "Done. Filed under **Support**."}}
	mb := &fakeMailbox{msg: &mail.EmailMessage{
		ID:       "msg-9",
		Subject:  "VPN access",
		BodyText: "Please grant VPN access.",
		Sender:   "ana@example.com",
	}}
	s := testServer(t, loop, nil, mb, Options{})

	rec := postWebhook(s, notificationBody(`Messages('msg-9')`, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	seed := loop.lastState.Messages[0].(orchestrator.UserMessage)
	assert.Contains(t, seed.Text, "VPN access")
	assert.Contains(t, seed.Text, "ana@example.com")

	// Answer rendered to HTML and sent as a reply.
	assert.Equal(t, "msg-9", mb.replyToID)
	require.Len(t, mb.replies, 1)
	assert.Contains(t, mb.replies[0], "<strong>Support</strong>")
}

func TestWebhook_SenderOutsideAllowedDomain(t *testing.T) {
	loop := &fakeRunner{}
	mb := &fakeMailbox{msg: &mail.EmailMessage{Sender: "spam@other.com"}}
	s := testServer(t, loop, nil, mb, Options{AllowedSenderDomain: "example.com"})

	rec := postWebhook(s, notificationBody(`Messages('msg-1')`, ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
	assert.Equal(t, 0, loop.calls)
}

func TestWebhook_FetchFailureFallsBack(t *testing.T) {
	loop := &fakeRunner{answer: orchestrator.AssistantMessage{Text: "ok"}}
	mb := &fakeMailbox{fetchErr: fmt.Errorf("graph returned status 503")}
	s := testServer(t, loop, nil, mb, Options{})

	rec := postWebhook(s, notificationBody(`Messages('msg-1')`, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	// Run still happened, seeded from the id alone; no reply attempted.
	assert.Equal(t, 1, loop.calls)
	seed := loop.lastState.Messages[0].(orchestrator.UserMessage)
	assert.Contains(t, seed.Text, "msg-1")
	assert.Empty(t, mb.replies)
}

func TestHealthz(t *testing.T) {
	s := testServer(t, &fakeRunner{}, nil, nil, Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
