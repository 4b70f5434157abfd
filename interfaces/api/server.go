// Package api provides the HTTP callback gateway for approval tickets.
//
// The gateway turns one-click links from approval emails into recorded
// decisions:
//   - GET /api/approve/{ticket} and GET /api/reject/{ticket} resolve a
//     ticket and render a confirmation page
//   - GET /api/status/{ticket} reports ticket state as JSON
//   - GET /api/approvals/pending lists open tickets
//   - POST /api/approvals opens a new ticket and emails the request
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/felixgeelhaar/hitl-go/application/approval"
	"github.com/felixgeelhaar/hitl-go/infrastructure/logging"
	"github.com/felixgeelhaar/hitl-go/infrastructure/notification"
)

// Config configures the gateway server.
type Config struct {
	// Service handles the approval lifecycle.
	Service *approval.Service

	// Links builds approve/reject URLs for create responses.
	Links *notification.ApprovalNotifier

	// Address is the HTTP listen address (default ":8086").
	Address string

	// EnableCORS enables Cross-Origin Resource Sharing on JSON endpoints.
	EnableCORS bool

	// ReadTimeout is the HTTP read timeout.
	ReadTimeout time.Duration

	// WriteTimeout is the HTTP write timeout.
	WriteTimeout time.Duration
}

// Server is the callback gateway HTTP server.
type Server struct {
	config     Config
	httpServer *http.Server
	mux        *http.ServeMux
}

// New creates a new gateway server.
func New(cfg Config) *Server {
	if cfg.Address == "" {
		cfg.Address = ":8086"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/approve/{ticket}", s.handleApprove)
	s.mux.HandleFunc("GET /api/reject/{ticket}", s.handleReject)
	s.mux.HandleFunc("GET /api/status/{ticket}", s.handleStatus)
	s.mux.HandleFunc("GET /api/approvals/pending", s.handlePending)
	s.mux.HandleFunc("POST /api/approvals", s.handleCreate)
	s.mux.HandleFunc("GET /api/approvals/{ticket}/wait", s.handleWait)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
}

// Handler returns the routed handler with middleware applied. It is the
// same handler Start serves, exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.withMiddleware(s.mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.config.Address,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	logging.Info().
		Add(logging.Str("addr", s.config.Address)).
		Msg("callback gateway listening")

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// withMiddleware wraps the handler with common middleware.
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.EnableCORS {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")

		handler.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().
			Add(logging.ErrorField(err)).
			Msg("failed to encode response")
	}
}

// HealthStatus is the health check response body.
type HealthStatus struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthStatus{
		Status:    "healthy",
		Service:   "hitl-approval-service",
		Timestamp: time.Now().UTC(),
	})
}

// handleIndex lists the available endpoints.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"service": "hitl-approval-service",
		"endpoints": map[string]string{
			"approve": "GET /api/approve/{ticket_id}",
			"reject":  "GET /api/reject/{ticket_id}",
			"status":  "GET /api/status/{ticket_id}",
			"pending": "GET /api/approvals/pending",
			"create":  "POST /api/approvals",
			"wait":    "GET /api/approvals/{ticket_id}/wait",
			"health":  "GET /health",
		},
	})
}
