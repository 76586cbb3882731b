// Package sounding holds the application services behind the sounding API:
// reads, job creation, water-vapor computation, and schedule management.
package sounding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
)

var (
	// ErrStationNotFound is returned when a station code does not resolve.
	ErrStationNotFound = errors.New("station not found")
	// ErrInvalidStep is returned when a backfill step is not positive.
	ErrInvalidStep = errors.New("step hours must be positive")
	// ErrInvalidWindow is returned when a backfill window ends before it starts.
	ErrInvalidWindow = errors.New("window end precedes start")
	// ErrNoSoundings is returned when an export or PWV request names no
	// stored soundings for the station.
	ErrNoSoundings = errors.New("soundings not found")
)

// Service exposes the sounding read and job operations.
type Service struct {
	stations   domain.StationRepository
	soundings  domain.SoundingRepository
	jobs       domain.SoundingJobRepository
	exports    domain.SoundingExportJobRepository
	schedule   domain.ScheduleRepository
	tickConfig domain.ScheduleConfigRepository
	queue      domain.JobQueue
	logger     *slog.Logger
}

// NewService wires the service over its repositories and the job queue.
func NewService(
	stations domain.StationRepository,
	soundings domain.SoundingRepository,
	jobs domain.SoundingJobRepository,
	exports domain.SoundingExportJobRepository,
	schedule domain.ScheduleRepository,
	tickConfig domain.ScheduleConfigRepository,
	queue domain.JobQueue,
	logger *slog.Logger,
) *Service {
	return &Service{
		stations:   stations,
		soundings:  soundings,
		jobs:       jobs,
		exports:    exports,
		schedule:   schedule,
		tickConfig: tickConfig,
		queue:      queue,
		logger:     logger,
	}
}

// ListSoundings returns stored soundings for a station code in ascending time
// order. An unknown code yields an empty list, not an error.
func (s *Service) ListSoundings(ctx context.Context, stationCode string, start, end *time.Time, limit, offset int) ([]*domain.Sounding, error) {
	station, err := s.stations.GetByCode(ctx, stationCode)
	if errors.Is(err, domain.ErrNotFound) {
		return []*domain.Sounding{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.soundings.List(ctx, station.ID, start, end, limit, offset)
}

// CountSoundings counts stored soundings for a station code; an unknown code
// counts zero.
func (s *Service) CountSoundings(ctx context.Context, stationCode string, start, end *time.Time) (int, error) {
	station, err := s.stations.GetByCode(ctx, stationCode)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return s.soundings.Count(ctx, station.ID, start, end)
}

// GetSounding fetches one stored sounding by id.
func (s *Service) GetSounding(ctx context.Context, id string) (*domain.Sounding, error) {
	return s.soundings.Get(ctx, id)
}

// GetJob fetches one backfill job by id.
func (s *Service) GetJob(ctx context.Context, id string) (*domain.SoundingJob, error) {
	return s.jobs.Get(ctx, id)
}

// GetExportJob fetches one export job by id.
func (s *Service) GetExportJob(ctx context.Context, id string) (*domain.SoundingExportJob, error) {
	return s.exports.Get(ctx, id)
}

// CreateJob validates and persists a backfill job over [startAt, endAt] at
// stepHours spacing, then hands it to the queue. The job record exists before
// the enqueue, so a dispatch failure leaves a visible pending job.
func (s *Service) CreateJob(ctx context.Context, stationCode string, startAt, endAt time.Time, stepHours int) (*domain.SoundingJob, error) {
	if stepHours <= 0 {
		return nil, ErrInvalidStep
	}
	if endAt.Before(startAt) {
		return nil, ErrInvalidWindow
	}

	station, err := s.stations.GetByCode(ctx, stationCode)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrStationNotFound
	}
	if err != nil {
		return nil, err
	}

	job, err := s.jobs.Create(ctx, station.ID, startAt, endAt, stepHours)
	if err != nil {
		return nil, fmt.Errorf("create backfill job: %w", err)
	}
	if err := s.queue.Enqueue(ctx, domain.JobKindLoadSoundings, job.ID); err != nil {
		return nil, fmt.Errorf("enqueue backfill job: %w", err)
	}

	s.logger.Info("backfill job created",
		"job_id", job.ID, "station", stationCode,
		"start", startAt, "end", endAt, "step_hours", stepHours)
	return job, nil
}

// CreateExportJob validates that every requested sounding exists and belongs
// to the named station, persists the export job, and enqueues it.
func (s *Service) CreateExportJob(ctx context.Context, stationCode string, soundingIDs []string) (*domain.SoundingExportJob, error) {
	ids := uniqueIDs(soundingIDs)
	if len(ids) == 0 {
		return nil, ErrNoSoundings
	}

	station, err := s.stations.GetByCode(ctx, stationCode)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrStationNotFound
	}
	if err != nil {
		return nil, err
	}

	found, err := s.soundings.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	matched := 0
	for _, sounding := range found {
		if sounding.StationID == station.ID {
			matched++
		}
	}
	if matched != len(ids) {
		return nil, ErrNoSoundings
	}

	job, err := s.exports.Create(ctx, station.ID, ids)
	if err != nil {
		return nil, fmt.Errorf("create export job: %w", err)
	}
	if err := s.queue.Enqueue(ctx, domain.JobKindExportSoundings, job.ID); err != nil {
		return nil, fmt.Errorf("enqueue export job: %w", err)
	}

	s.logger.Info("export job created",
		"job_id", job.ID, "station", stationCode, "soundings", len(ids))
	return job, nil
}

// ComputePWV computes precipitable water vapor for the requested soundings.
// Ids that do not resolve, or that belong to another station, are dropped;
// results come back in ascending observation time order.
func (s *Service) ComputePWV(ctx context.Context, stationCode string, soundingIDs []string, minHeight float64) ([]domain.PWVResult, error) {
	station, err := s.stations.GetByCode(ctx, stationCode)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrStationNotFound
	}
	if err != nil {
		return nil, err
	}

	found, err := s.soundings.GetMany(ctx, uniqueIDs(soundingIDs))
	if err != nil {
		return nil, err
	}

	results := make([]domain.PWVResult, 0, len(found))
	for _, sounding := range found {
		if sounding.StationID != station.ID {
			continue
		}
		results = append(results, domain.PWVResult{
			SoundingID:   sounding.ID,
			SoundingTime: sounding.SoundingTime,
			PWV:          domain.ComputePWV(sounding.Columns, sounding.Rows, minHeight),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].SoundingTime.Before(results[j].SoundingTime)
	})
	return results, nil
}

// ListSchedule returns all tick subscriptions.
func (s *Service) ListSchedule(ctx context.Context) ([]*domain.ScheduleItem, error) {
	return s.schedule.List(ctx)
}

// AddSchedule subscribes a station to the periodic tick. Re-adding a station
// returns the existing subscription.
func (s *Service) AddSchedule(ctx context.Context, stationCode string) (*domain.ScheduleItem, error) {
	station, err := s.stations.GetByCode(ctx, stationCode)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrStationNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.schedule.Add(ctx, station.ID, station.Code)
}

// SetScheduleEnabled toggles one subscription.
func (s *Service) SetScheduleEnabled(ctx context.Context, id string, enabled bool) (*domain.ScheduleItem, error) {
	return s.schedule.SetEnabled(ctx, id, enabled)
}

// DeleteSchedule removes one subscription.
func (s *Service) DeleteSchedule(ctx context.Context, id string) error {
	return s.schedule.Delete(ctx, id)
}

// GetScheduleConfig returns the global tick configuration.
func (s *Service) GetScheduleConfig(ctx context.Context) (domain.ScheduleConfig, error) {
	return s.tickConfig.Get(ctx)
}

// UpdateScheduleConfig applies the non-nil fields to the global tick
// configuration.
func (s *Service) UpdateScheduleConfig(ctx context.Context, intervalHours, offsetHours *int) (domain.ScheduleConfig, error) {
	return s.tickConfig.Update(ctx, intervalHours, offsetHours)
}

// uniqueIDs trims blanks and deduplicates while preserving order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
