// Package httpapi exposes the filing daemon over HTTP: a health probe, the
// recent operation log, and a websocket stream of filing events.
package httpapi

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"nhooyr.io/websocket"

	"github.com/JakeWhiteArchitecture/fileuzi/internal/filing"
)

type ServerConfig struct {
	// Token is the static bearer token required on /v1 routes. Empty
	// disables auth, which is only sensible on a loopback listener.
	Token string
	// WriteTimeout bounds each websocket frame write.
	WriteTimeout time.Duration
}

type Server struct {
	events *filing.Broadcaster
	cfg    ServerConfig
}

func NewServer(events *filing.Broadcaster) *Server {
	return NewServerWithConfig(events, ServerConfig{})
}

func NewServerWithConfig(events *filing.Broadcaster, cfg ServerConfig) *Server {
	if events == nil {
		events = filing.NewBroadcaster()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Server{events: events, cfg: cfg}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	switch {
	case r.URL.Path == "/v1/operations" && r.Method == http.MethodGet:
		if !s.authorize(w, r) {
			return
		}
		s.handleOperations(w, r)
	case r.URL.Path == "/v1/events/stream" && r.Method == http.MethodGet:
		if !s.authorize(w, r) {
			return
		}
		s.handleEventStream(w, r)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.Token == "" {
		return true
	}
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix ||
		!hmac.Equal([]byte(header[len(prefix):]), []byte(s.cfg.Token)) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
		return false
	}
	return true
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	events := s.events.Recent()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a non-negative integer")
			return
		}
		if limit < len(events) {
			events = events[len(events)-limit:]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"operations": events})
}

// handleEventStream upgrades to a websocket and forwards filing events as
// JSON text frames until the client goes away.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ch, cancel := s.events.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, s.cfg.WriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancelWrite()
			if err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":    code,
		"message": message,
	})
}
