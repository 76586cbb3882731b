package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
)

// JobStore implements domain.SoundingJobRepository.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.SoundingJob
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*domain.SoundingJob)}
}

func (s *JobStore) Create(_ context.Context, stationID string, startAt, endAt time.Time, stepHours int) (*domain.SoundingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := domain.Now()
	job := &domain.SoundingJob{
		ID:        uuid.NewString(),
		StationID: stationID,
		Status:    domain.JobPending,
		StartAt:   startAt.UTC(),
		EndAt:     endAt.UTC(),
		StepHours: stepHours,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[job.ID] = job
	copied := *job
	return &copied, nil
}

func (s *JobStore) Get(_ context.Context, id string) (*domain.SoundingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

// UpdateProgress applies the non-nil fields of p and bumps UpdatedAt.
func (s *JobStore) UpdateProgress(_ context.Context, id string, p domain.JobProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status != nil {
		job.Status = *p.Status
	}
	if p.Total != nil {
		job.Total = *p.Total
	}
	if p.Done != nil {
		job.Done = *p.Done
	}
	if p.Error != nil {
		job.Error = *p.Error
	}
	job.UpdatedAt = domain.Now()
	return nil
}

// ExportJobStore implements domain.SoundingExportJobRepository.
type ExportJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.SoundingExportJob
}

func NewExportJobStore() *ExportJobStore {
	return &ExportJobStore{jobs: make(map[string]*domain.SoundingExportJob)}
}

func (s *ExportJobStore) Create(_ context.Context, stationID string, soundingIDs []string) (*domain.SoundingExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := domain.Now()
	job := &domain.SoundingExportJob{
		ID:          uuid.NewString(),
		StationID:   stationID,
		SoundingIDs: append([]string(nil), soundingIDs...),
		Status:      domain.JobPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.jobs[job.ID] = job
	return copyExportJob(job), nil
}

func (s *ExportJobStore) Get(_ context.Context, id string) (*domain.SoundingExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyExportJob(job), nil
}

// UpdateProgress applies the non-nil fields of p and bumps UpdatedAt.
func (s *ExportJobStore) UpdateProgress(_ context.Context, id string, p domain.ExportProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status != nil {
		job.Status = *p.Status
	}
	if p.Total != nil {
		job.Total = *p.Total
	}
	if p.Done != nil {
		job.Done = *p.Done
	}
	if p.Error != nil {
		job.Error = *p.Error
	}
	if p.FilePath != nil {
		job.FilePath = *p.FilePath
	}
	if p.FileName != nil {
		job.FileName = *p.FileName
	}
	job.UpdatedAt = domain.Now()
	return nil
}

func copyExportJob(in *domain.SoundingExportJob) *domain.SoundingExportJob {
	out := *in
	out.SoundingIDs = append([]string(nil), in.SoundingIDs...)
	return &out
}
