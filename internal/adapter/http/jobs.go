package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
	"github.com/couchcryptid/sounding-data-service/internal/sounding"
)

// JobService creates and reads acquisition and export jobs.
type JobService interface {
	CreateJob(ctx context.Context, stationCode string, startAt, endAt time.Time, stepHours int) (*domain.SoundingJob, error)
	CreateExportJob(ctx context.Context, stationCode string, soundingIDs []string) (*domain.SoundingExportJob, error)
	GetJob(ctx context.Context, id string) (*domain.SoundingJob, error)
	GetExportJob(ctx context.Context, id string) (*domain.SoundingExportJob, error)
}

type backfillRequest struct {
	Station   string    `json:"station"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	StepHours int       `json:"step_hours"`
}

type exportRequest struct {
	Station     string   `json:"station"`
	SoundingIDs []string `json:"sounding_ids"`
}

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
	Done   int    `json:"done"`
	Error  string `json:"error,omitempty"`
}

type exportJobResponse struct {
	jobResponse
	FileName string `json:"file_name,omitempty"`
}

// registerJobRoutes adds the job dispatch surface. This is deliberately
// minimal: create and poll, nothing more.
func (s *Server) registerJobRoutes(mux *http.ServeMux, jobs JobService) {
	mux.HandleFunc("POST /jobs/backfill", func(w http.ResponseWriter, r *http.Request) {
		var req backfillRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		job, err := jobs.CreateJob(r.Context(), req.Station, req.StartAt, req.EndAt, req.StepHours)
		if err != nil {
			writeJobError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, toJobResponse(job))
	})

	mux.HandleFunc("POST /jobs/export", func(w http.ResponseWriter, r *http.Request) {
		var req exportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		job, err := jobs.CreateExportJob(r.Context(), req.Station, req.SoundingIDs)
		if err != nil {
			writeJobError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, toExportJobResponse(job))
	})

	mux.HandleFunc("GET /jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		job, err := jobs.GetJob(r.Context(), r.PathValue("id"))
		if err != nil {
			writeJobError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toJobResponse(job))
	})

	mux.HandleFunc("GET /exports/{id}", func(w http.ResponseWriter, r *http.Request) {
		job, err := jobs.GetExportJob(r.Context(), r.PathValue("id"))
		if err != nil {
			writeJobError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toExportJobResponse(job))
	})
}

func toJobResponse(job *domain.SoundingJob) jobResponse {
	return jobResponse{
		ID:     job.ID,
		Status: string(job.Status),
		Total:  job.Total,
		Done:   job.Done,
		Error:  job.Error,
	}
}

func toExportJobResponse(job *domain.SoundingExportJob) exportJobResponse {
	return exportJobResponse{
		jobResponse: jobResponse{
			ID:     job.ID,
			Status: string(job.Status),
			Total:  job.Total,
			Done:   job.Done,
			Error:  job.Error,
		},
		FileName: job.FileName,
	}
}

func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, sounding.ErrStationNotFound),
		errors.Is(err, sounding.ErrInvalidStep),
		errors.Is(err, sounding.ErrInvalidWindow),
		errors.Is(err, sounding.ErrNoSoundings):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
