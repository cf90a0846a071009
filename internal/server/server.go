// Package server exposes the alert feed over a websocket endpoint. Clients
// receive the full feed and badge counts on connect and after every engine
// recomputation, and can send control messages to dismiss badges, pin and
// unpin alerts, and change the alert rule.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iamkanga/asxtracker-sub003/internal/logger"
)

// Server is the HTTP front for the websocket hub.
type Server struct {
	hub  *Hub
	http *http.Server
}

func New(addr string, engine Engine, rules RuleStore) *Server {
	hub := NewHub(engine, rules)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"clients": hub.ClientCount(),
		})
	})

	return &Server{
		hub:  hub,
		http: &http.Server{Addr: addr, Handler: mux},
	}
}

// Hub returns the websocket hub, for wiring the engine change callback.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start serves until Shutdown is called. It blocks.
func (s *Server) Start() error {
	logger.Info("WebSocket server listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
