// ABOUTME: HTTP server wiring: router construction and shared dependencies.
// ABOUTME: Handlers live in webhook.go; this file owns the chi router.

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oakmail/steward/internal/dedupe"
	"github.com/oakmail/steward/internal/mail"
	"github.com/oakmail/steward/internal/orchestrator"
	"github.com/oakmail/steward/internal/store"
)

// runner is the slice of the orchestration loop the server drives.
type runner interface {
	Run(ctx context.Context, state *orchestrator.State) (orchestrator.AssistantMessage, error)
}

// Mailbox is the slice of the Graph client the webhook uses. Nil when
// the mail collaborator is not configured.
type Mailbox interface {
	FetchMessage(ctx context.Context, messageID string) (*mail.EmailMessage, error)
	SendReply(ctx context.Context, messageID, htmlBody string) error
}

// Options carries the webhook verification and filtering settings.
type Options struct {
	// ClientState, when non-empty, must match inbound notifications.
	ClientState string
	// AllowedSenderDomain, when non-empty, gates which senders get a run.
	AllowedSenderDomain string
}

// Server handles HTTP traffic for steward.
type Server struct {
	loop    runner
	store   store.Store
	cache   *dedupe.Cache
	mailbox Mailbox
	opts    Options
	logger  *slog.Logger
	router  chi.Router
}

// New builds a Server. mb may be nil; runs are then seeded from the
// message id alone and no replies are sent.
func New(loop runner, st store.Store, cache *dedupe.Cache, mb Mailbox, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		loop:    loop,
		store:   st,
		cache:   cache,
		mailbox: mb,
		opts:    opts,
		logger:  logger.With("component", "server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Post("/webhook/mail", s.handleMailWebhook)
	s.router = r

	return s
}

// Handler returns the HTTP handler for mounting on an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
