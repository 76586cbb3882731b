// Package http exposes the service's operational endpoints and the export
// artifact download route.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ExportJobGetter fetches export jobs for the download route.
type ExportJobGetter interface {
	Get(ctx context.Context, id string) (*domain.SoundingExportJob, error)
}

// Server exposes health, readiness, metrics, and export download endpoints.
type Server struct {
	httpServer *http.Server
	exports    ExportJobGetter
	logger     *slog.Logger
}

// NewServer creates the HTTP server: /healthz, /readyz, /metrics, the job
// dispatch routes, the telemetry series route, and GET
// /exports/{id}/download. Nil services leave their routes unregistered.
func NewServer(addr string, ready ReadinessChecker, jobs JobService, series SeriesService, exports ExportJobGetter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		exports: exports,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /exports/{id}/download", s.handleExportDownload)
	if jobs != nil {
		s.registerJobRoutes(mux, jobs)
	}
	if series != nil {
		s.registerSeriesRoutes(mux, series)
	}

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

// handleExportDownload streams a finished export artifact once. The file and
// its per-job directory are removed after a served download, so a repeat
// request comes back 404.
func (s *Server) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	job, err := s.exports.Get(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "export not found"})
		return
	}
	if err != nil {
		s.logger.Error("export lookup failed", "export_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "export lookup failed"})
		return
	}

	if job.Status != domain.JobDone || job.FilePath == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "export not ready"})
		return
	}
	if _, err := os.Stat(job.FilePath); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "export file gone"})
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+job.FileName+`"`)
	http.ServeFile(w, r, job.FilePath)

	// Artifact served; best-effort cleanup of the file and its job directory.
	if err := os.Remove(job.FilePath); err != nil {
		s.logger.Warn("export file cleanup failed", "path", job.FilePath, "error", err)
		return
	}
	_ = os.Remove(filepath.Dir(job.FilePath))
	s.logger.Info("export downloaded and removed", "export_id", id, "file", job.FileName)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
