package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when no row matches the key.
var ErrNotFound = errors.New("not found")

// StationRepository persists stations keyed by their external code.
type StationRepository interface {
	GetByCode(ctx context.Context, code string) (*Station, error)
	GetByID(ctx context.Context, id string) (*Station, error)
	Upsert(ctx context.Context, payload StationPayload, updatedAt time.Time) (*Station, error)
}

// SoundingRepository persists soundings keyed by (station, sounding time).
type SoundingRepository interface {
	// Upsert stores the sounding, replacing any existing row with the same
	// (StationID, SoundingTime) key. The stored row is returned.
	Upsert(ctx context.Context, s *Sounding) (*Sounding, error)
	Get(ctx context.Context, id string) (*Sounding, error)
	// GetMany returns the soundings that resolve, silently dropping unknown ids.
	GetMany(ctx context.Context, ids []string) ([]*Sounding, error)
	List(ctx context.Context, stationID string, start, end *time.Time, limit, offset int) ([]*Sounding, error)
	Count(ctx context.Context, stationID string, start, end *time.Time) (int, error)
}

// JobProgress is a partial update to a backfill job; nil fields are left
// unchanged.
type JobProgress struct {
	Status *JobStatus
	Total  *int
	Done   *int
	Error  *string
}

// SoundingJobRepository persists backfill jobs.
type SoundingJobRepository interface {
	Create(ctx context.Context, stationID string, startAt, endAt time.Time, stepHours int) (*SoundingJob, error)
	Get(ctx context.Context, id string) (*SoundingJob, error)
	UpdateProgress(ctx context.Context, id string, p JobProgress) error
}

// ExportProgress is a partial update to an export job; nil fields are left
// unchanged.
type ExportProgress struct {
	Status   *JobStatus
	Total    *int
	Done     *int
	Error    *string
	FilePath *string
	FileName *string
}

// SoundingExportJobRepository persists export jobs.
type SoundingExportJobRepository interface {
	Create(ctx context.Context, stationID string, soundingIDs []string) (*SoundingExportJob, error)
	Get(ctx context.Context, id string) (*SoundingExportJob, error)
	UpdateProgress(ctx context.Context, id string, p ExportProgress) error
}

// ScheduleRepository persists per-station tick subscriptions.
type ScheduleRepository interface {
	List(ctx context.Context) ([]*ScheduleItem, error)
	// Add subscribes a station; adding an already-subscribed station returns
	// the existing item.
	Add(ctx context.Context, stationID, stationCode string) (*ScheduleItem, error)
	SetEnabled(ctx context.Context, id string, enabled bool) (*ScheduleItem, error)
	Delete(ctx context.Context, id string) error
}

// ScheduleConfigRepository persists the single global tick configuration.
type ScheduleConfigRepository interface {
	Get(ctx context.Context) (ScheduleConfig, error)
	// Update applies the non-nil fields and returns the resulting config.
	Update(ctx context.Context, intervalHours, offsetHours *int) (ScheduleConfig, error)
}

// MeasurementRepository is the telemetry store's count/bounds/aggregate-read
// contract consumed by the series downsampler.
type MeasurementRepository interface {
	Add(ctx context.Context, m *Measurement) error
	List(ctx context.Context, deviceID string, start, end *time.Time, limit int) ([]*Measurement, error)
	Count(ctx context.Context, deviceID string, start, end *time.Time) (int, error)
	// Bounds returns the min and max timestamps of the matching rows, or
	// nils when nothing matches.
	Bounds(ctx context.Context, deviceID string, start, end *time.Time) (*time.Time, *time.Time, error)
	// ListAggregated returns bucket averages of width bucketSeconds, at most
	// limit buckets, in ascending time order.
	ListAggregated(ctx context.Context, deviceID string, start, end *time.Time, bucketSeconds, limit int) ([]*MeasurementPoint, error)
}

// JobQueue hands a job id to a background worker. Fire-and-forget: the
// worker re-reads the job by id and owns all state transitions.
type JobQueue interface {
	Enqueue(ctx context.Context, kind, jobID string) error
}
