package oracle

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"zen7-console/internal/middleware"
)

// MaxNotifyBodySize limits webhook bodies to 1MB.
const MaxNotifyBodySize = 1 << 20

// Server holds a single completion flag shared by every conversation it serves.
type Server struct {
	finished atomic.Bool
	logger   *slog.Logger
}

// NewServer creates a Server with the flag cleared.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger}
}

// RegisterRoutes registers the oracle endpoints with the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("PUT /reset", s.handleReset)
	mux.HandleFunc("POST /notify", s.handleNotify)
	mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the routes wrapped in recovery → request id → logging.
func (s *Server) Handler() http.Handler {
	return s.HandlerWith(nil)
}

// HandlerWith is Handler with extra routes registered by mount on the same
// mux, behind the same middleware.
func (s *Server) HandlerWith(mount func(mux *http.ServeMux)) http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	if mount != nil {
		mount(mux)
	}
	// Recovery must be outermost to catch panics from logging middleware
	return middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.Logging(s.logger),
	)(mux)
}

// Finished reports the current flag.
func (s *Server) Finished() bool {
	return s.finished.Load()
}

// MarkFinished sets the flag without going through HTTP.
// Used when the settlement backend runs in the same process.
func (s *Server) MarkFinished() {
	s.finished.Store(true)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w, s.finished.Load())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.finished.Store(false)
	s.logger.InfoContext(r.Context(), "completion flag reset")
	s.writeStatus(w, false)
}

// handleNotify is the settlement backend's webhook. The body is only logged.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxNotifyBodySize))
	if err != nil {
		s.logger.WarnContext(r.Context(), "notify body rejected", slog.String("error", err.Error()))
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	s.finished.Store(true)
	s.logger.InfoContext(r.Context(), "settlement notified",
		slog.String("request_id", middleware.RequestIDFrom(r.Context())),
		slog.String("body", string(body)),
	)
	s.writeStatus(w, true)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// writeStatus sends {"status": v}.
func (s *Server) writeStatus(w http.ResponseWriter, v bool) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statusResponse{Status: v}); err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
