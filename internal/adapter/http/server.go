package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/nga-flood-trigger/internal/adapter/store"
	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// TriggerReader returns the most recent trigger record.
type TriggerReader interface {
	LatestTrigger(ctx context.Context) (domain.TriggerRecord, error)
}

// Runner evaluates one monitoring date on demand.
type Runner interface {
	RunOnce(ctx context.Context, monitoringDate time.Time) (domain.TriggerRecord, error)
}

// Server exposes health, readiness, metrics and trigger status HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// GET /status and POST /runs routes.
func NewServer(addr string, ready ReadinessChecker, triggers TriggerReader, runner Runner, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /status", handleStatus(triggers))
	mux.HandleFunc("POST /runs", s.handleRun(runner))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// statusResponse is a trigger record plus its rendered status.
type statusResponse struct {
	Status string `json:"status"`
	domain.TriggerRecord
}

func handleStatus(triggers TriggerReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := triggers.LatestTrigger(r.Context())
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no trigger evaluated yet"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: rec.Status(), TriggerRecord: rec})
	}
}

func (s *Server) handleRun(runner Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("date")
		if raw == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date query parameter is required (YYYY-MM-DD)"})
			return
		}
		date, err := domain.ParseDate(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		rec, err := runner.RunOnce(r.Context(), date)
		if err != nil {
			s.logger.Error("manual run failed", "monitoring_date", raw, "error", err)
			status := http.StatusInternalServerError
			if errors.Is(err, domain.ErrNoMonitoringData) {
				status = http.StatusUnprocessableEntity
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: rec.Status(), TriggerRecord: rec})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
