package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/adewale/keyboardia/internal/coordinator"
	"github.com/adewale/keyboardia/internal/state"
	"github.com/adewale/keyboardia/internal/store"
)

// Server routes HTTP and WebSocket traffic to the session hub.
type Server struct {
	hub      *coordinator.Hub
	store    *store.Store
	upgrader websocket.Upgrader
}

// New creates a server over the given hub and store.
func New(hub *coordinator.Hub, st *store.Store) *Server {
	return &Server{
		hub:   hub,
		store: st,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  state.MaxMessageBytes,
			WriteBufferSize: state.MaxMessageBytes,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(accessLog)

	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.healthz)
	r.Methods(http.MethodGet).Path("/sessions").HandlerFunc(s.listSessions)
	r.Methods(http.MethodGet).Path("/sessions/{session}").HandlerFunc(s.getSession)
	r.Methods(http.MethodGet).Path("/ws/{session}").HandlerFunc(s.serveWS)
	return r
}

func accessLog(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(handler, w, r)
		slog.Info("handled",
			"method", r.Method,
			"url", r.URL,
			"duration", m.Duration,
			"status", m.Code,
		)
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.hub.Len(),
	})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.ListSessions(r.Context())
	if err != nil {
		slog.Error("list sessions failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// getSession materializes the session's current document as plain JSON.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["session"]

	info, err := s.store.SessionInfo(r.Context(), id)
	if err == store.ErrSessionNotFound {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("session info failed", "session", id, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	sess, err := s.hub.Open(r.Context(), id)
	if err != nil {
		slog.Error("open session failed", "session", id, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":    info.ID,
		"seq":   sess.Seq(),
		"state": sess.State(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response failed", "error", err)
	}
}
