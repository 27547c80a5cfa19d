// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/obdstream/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// SelectAll returns every stored sample in insertion order.
	SelectAll(ctx context.Context) ([]model.Sample, error)

	// DeleteAll removes every stored sample.
	DeleteAll(ctx context.Context) (int64, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Hello serves GET /.
	Hello(ctx context.Context) (any, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	samplesHandler *SamplesHandler
	rootHandler    *RootHandler
	sessions       http.Handler
}

// NewServer creates a new API server with all handlers. sessions serves
// the WebSocket upgrade at /ws.
func NewServer(deps Dependencies, statsProvider StatsProvider, sessions http.Handler) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(deps),
		statsHandler:   NewStatsHandler(statsProvider),
		samplesHandler: NewSamplesHandler(deps),
		rootHandler:    NewRootHandler(deps),
		sessions:       sessions,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// The upgrade hijacks the connection, so /ws is not wrapped.
	mux.Handle("/ws", s.sessions)
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/samples", MetricsMiddleware(s.samplesHandler.HandleSamples, "samples"))
	mux.HandleFunc("/", MetricsMiddleware(s.rootHandler.HandleRoot, "root"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// methodNotAllowed answers 405 with the allowed methods.
func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
}

// storageError translates a dependency failure into a response.
func storageError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err)
}
