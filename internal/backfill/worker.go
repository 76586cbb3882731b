// Package backfill processes bulk sounding acquisition jobs: for each hour in
// the job window, fetch the profile from the archive and store it.
package backfill

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
	"github.com/couchcryptid/sounding-data-service/internal/observability"
)

// Fetcher retrieves one sounding from the external archive. A (nil, nil)
// return means the archive has no data for that slot.
type Fetcher interface {
	FetchSounding(ctx context.Context, stationCode string, t time.Time) (*domain.SoundingPayload, error)
}

// Worker executes backfill jobs handed over by the job queue.
type Worker struct {
	jobs        domain.SoundingJobRepository
	stations    domain.StationRepository
	soundings   domain.SoundingRepository
	fetcher     Fetcher
	concurrency int
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewWorker wires a backfill worker. concurrency caps simultaneous archive
// requests per job.
func NewWorker(
	jobs domain.SoundingJobRepository,
	stations domain.StationRepository,
	soundings domain.SoundingRepository,
	fetcher Fetcher,
	concurrency int,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		jobs:        jobs,
		stations:    stations,
		soundings:   soundings,
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      logger,
		metrics:     metrics,
	}
}

type fetchResult struct {
	at      time.Time
	payload *domain.SoundingPayload
	err     error
}

// Process runs one backfill job to completion. Unknown and already-terminal
// jobs are logged and dropped so queue redeliveries cannot restart finished
// work. Individual fetch or store failures are recorded on the job but do
// not abort the remaining slots; the job always finishes done with the last
// error message attached, unless its station no longer resolves.
func (w *Worker) Process(ctx context.Context, jobID string) error {
	job, err := w.jobs.Get(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		w.logger.Warn("backfill job not found, dropping", "job_id", jobID)
		return nil
	}
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		w.logger.Warn("backfill job already terminal, dropping",
			"job_id", jobID, "status", job.Status)
		return nil
	}

	w.metrics.JobsInFlight.Inc()
	defer w.metrics.JobsInFlight.Dec()

	times := buildTimes(job.StartAt, job.EndAt, job.StepHours)
	total := len(times)

	running := domain.JobRunning
	if err := w.jobs.UpdateProgress(ctx, jobID, domain.JobProgress{Status: &running, Total: &total}); err != nil {
		return err
	}

	station, err := w.stations.GetByID(ctx, job.StationID)
	if err != nil {
		w.failJob(ctx, jobID, "station not found")
		return nil
	}

	w.logger.Info("backfill job started",
		"job_id", jobID, "station", station.Code, "slots", total)

	if total == 0 {
		w.finishJob(ctx, jobID, 0, "")
		return nil
	}

	results := w.fetchAll(ctx, station.Code, times)

	done := 0
	lastErr := ""
	for result := range results {
		if result.err != nil {
			lastErr = result.err.Error()
			w.metrics.SoundingFetches.WithLabelValues("error").Inc()
			w.logger.Warn("sounding fetch failed",
				"job_id", jobID, "station", station.Code,
				"at", result.at, "error", result.err)
		} else if result.payload != nil && result.payload.RowCount > 0 {
			if err := w.store(ctx, station.ID, result.at, result.payload); err != nil {
				lastErr = err.Error()
				w.logger.Error("sounding store failed",
					"job_id", jobID, "at", result.at, "error", err)
			} else {
				w.metrics.SoundingFetches.WithLabelValues("success").Inc()
				w.metrics.SoundingsStored.Inc()
			}
		} else {
			w.metrics.SoundingFetches.WithLabelValues("empty").Inc()
		}

		done++
		if err := w.jobs.UpdateProgress(ctx, jobID, domain.JobProgress{Done: &done}); err != nil {
			w.logger.Warn("progress update failed", "job_id", jobID, "error", err)
		}
	}

	w.finishJob(ctx, jobID, done, lastErr)
	w.logger.Info("backfill job finished",
		"job_id", jobID, "done", done, "total", total, "last_error", lastErr)
	return nil
}

// fetchAll fans the time slots out over a bounded worker pool and returns the
// channel of results. The channel closes once every slot is attempted.
func (w *Worker) fetchAll(ctx context.Context, stationCode string, times []time.Time) <-chan fetchResult {
	slots := make(chan time.Time)
	results := make(chan fetchResult)

	workers := w.concurrency
	if workers > len(times) {
		workers = len(times)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for at := range slots {
				start := time.Now()
				payload, err := w.fetcher.FetchSounding(ctx, stationCode, at)
				w.metrics.FetchDuration.Observe(time.Since(start).Seconds())
				results <- fetchResult{at: at, payload: payload, err: err}
			}
		}()
	}

	go func() {
		for _, at := range times {
			slots <- at
		}
		close(slots)
		wg.Wait()
		close(results)
	}()

	return results
}

func (w *Worker) store(ctx context.Context, stationID string, at time.Time, payload *domain.SoundingPayload) error {
	_, err := w.soundings.Upsert(ctx, &domain.Sounding{
		StationID:    stationID,
		SoundingTime: at.UTC(),
		StationName:  payload.StationName,
		Columns:      payload.Columns,
		Rows:         payload.Rows,
		Units:        payload.Units,
		RawText:      payload.RawText,
		RowCount:     payload.RowCount,
	})
	return err
}

func (w *Worker) finishJob(ctx context.Context, jobID string, done int, lastErr string) {
	status := domain.JobDone
	progress := domain.JobProgress{Status: &status, Done: &done}
	if lastErr != "" {
		progress.Error = &lastErr
	}
	if err := w.jobs.UpdateProgress(ctx, jobID, progress); err != nil {
		w.logger.Error("finalize job failed", "job_id", jobID, "error", err)
	}
	w.metrics.BackfillJobs.WithLabelValues(string(domain.JobDone)).Inc()
}

func (w *Worker) failJob(ctx context.Context, jobID, message string) {
	status := domain.JobFailed
	if err := w.jobs.UpdateProgress(ctx, jobID, domain.JobProgress{Status: &status, Error: &message}); err != nil {
		w.logger.Error("fail job update failed", "job_id", jobID, "error", err)
	}
	w.metrics.BackfillJobs.WithLabelValues(string(domain.JobFailed)).Inc()
}

// buildTimes expands [start, end] into slots stepHours apart, inclusive of
// both endpoints when the step lands on end exactly.
func buildTimes(start, end time.Time, stepHours int) []time.Time {
	if stepHours <= 0 || end.Before(start) {
		return nil
	}
	step := time.Duration(stepHours) * time.Hour
	var times []time.Time
	for at := start; !at.After(end); at = at.Add(step) {
		times = append(times, at)
	}
	return times
}
