// Package server is the HTTP front of the notifier: it receives GitLab
// webhooks and streams dispatch outcomes to anyone watching.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heuritech/gitlab-slack-notifier/internal/config"
	"github.com/heuritech/gitlab-slack-notifier/internal/event"
	"github.com/heuritech/gitlab-slack-notifier/models"
)

// DefaultPort is used when the configuration leaves the port unset.
const DefaultPort = 5000

// maxBodyBytes caps webhook payloads; pipeline events of large projects
// stay well below it.
const maxBodyBytes = 25 << 20

// Dispatcher is the part of notify.Dispatcher the server needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, deliveryID string, ev *event.Event) ([]models.Outcome, error)
}

// StatusFunc reports extra fields for GET /health.
type StatusFunc func() map[string]any

// Server accepts GitLab webhooks on POST / and hands them to a Dispatcher.
type Server struct {
	port        int
	secret      string
	dispatcher  Dispatcher
	broadcaster *Broadcaster
	status      StatusFunc
	startedAt   time.Time
}

// New creates a Server. b may be shared with the dispatcher so outcomes
// reach GET /events.
func New(cfg config.ServerConfig, d Dispatcher, b *Broadcaster) *Server {
	if b == nil {
		b = NewBroadcaster()
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	return &Server{
		port:        port,
		secret:      cfg.WebhookSecret,
		dispatcher:  d,
		broadcaster: b,
		startedAt:   time.Now(),
	}
}

// SetStatusFunc installs fn as the source of extra health fields.
func (s *Server) SetStatusFunc(fn StatusFunc) { s.status = fn }

// Handler returns the routed, token-checked HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", s.handleWebhook)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /events", s.handleSSE)
	return s.requireToken(mux)
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server: listening", "addr", addr, "token_check", s.secret != "")
	s.broadcaster.send(SSEEvent{Type: "server.started", Payload: map[string]string{"addr": addr}})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
