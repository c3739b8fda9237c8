package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/heuritech/gitlab-slack-notifier/internal/event"
)

const (
	tokenHeader = "X-Gitlab-Token"
	uuidHeader  = "X-Gitlab-Event-UUID"
)

// requireToken rejects every request whose X-Gitlab-Token header does not
// match the configured secret. No secret means no check.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.secret != "" {
			got := r.Header.Get(tokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
				slog.Warn("server: rejected request with bad token", "path", r.URL.Path, "remote", r.RemoteAddr)
				writeError(w, http.StatusForbidden, "Missing or invalid x-gitlab-token header.")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		slog.Warn("server: reading request body failed", "error", err)
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	ev, err := event.Decode(body)
	if err != nil {
		slog.Warn("server: rejected malformed event", "error", err)
		writeError(w, http.StatusBadRequest, "request body must be a JSON event")
		return
	}

	id := r.Header.Get(uuidHeader)
	if id == "" {
		id = uuid.NewString()
	}
	slog.Debug("server: event received", "delivery", id, "event", ev.Describe(), "bytes", len(body))

	// A dispatch runs to completion even if GitLab hangs up.
	ctx := context.WithoutCancel(r.Context())
	outcomes, err := s.dispatcher.Dispatch(ctx, id, ev)
	if err != nil {
		// GitLab would retry the same payload; log and acknowledge.
		slog.Error("server: event dropped", "delivery", id, "event", ev.Describe(), "error", err)
		s.broadcaster.send(SSEEvent{Type: "dispatch.failed", Payload: map[string]string{
			"delivery": id,
			"event":    ev.Describe(),
			"error":    err.Error(),
		}})
	} else {
		slog.Info("server: event processed", "delivery", id, "event", ev.Describe(), "outcomes", len(outcomes))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "Event processed.")
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "dummy"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"subscribers":    s.broadcaster.Subscribers(),
	}
	if s.status != nil {
		for k, v := range s.status() {
			resp[k] = v
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := s.broadcaster.subscribe()
	defer s.broadcaster.unsubscribe(ch)

	connected, _ := json.Marshal(SSEEvent{Type: "connected"})
	fmt.Fprintf(w, "data: %s\n\n", connected)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}
