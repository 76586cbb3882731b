package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
)

// ScheduleStore implements domain.ScheduleRepository.
type ScheduleStore struct {
	mu        sync.RWMutex
	items     map[string]*domain.ScheduleItem
	byStation map[string]string // stationID -> item id
}

func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{
		items:     make(map[string]*domain.ScheduleItem),
		byStation: make(map[string]string),
	}
}

func (s *ScheduleStore) List(_ context.Context) ([]*domain.ScheduleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ScheduleItem, 0, len(s.items))
	for _, item := range s.items {
		copied := *item
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Add subscribes a station to the tick. Adding an already-subscribed station
// returns the existing item unchanged.
func (s *ScheduleStore) Add(_ context.Context, stationID, stationCode string) (*domain.ScheduleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byStation[stationID]; ok {
		copied := *s.items[id]
		return &copied, nil
	}

	item := &domain.ScheduleItem{
		ID:          uuid.NewString(),
		StationID:   stationID,
		StationCode: stationCode,
		Enabled:     true,
		CreatedAt:   domain.Now(),
	}
	s.items[item.ID] = item
	s.byStation[stationID] = item.ID
	copied := *item
	return &copied, nil
}

func (s *ScheduleStore) SetEnabled(_ context.Context, id string, enabled bool) (*domain.ScheduleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	item.Enabled = enabled
	copied := *item
	return &copied, nil
}

func (s *ScheduleStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.byStation, item.StationID)
	delete(s.items, id)
	return nil
}

// ScheduleConfigStore implements domain.ScheduleConfigRepository.
type ScheduleConfigStore struct {
	mu  sync.RWMutex
	cfg domain.ScheduleConfig
}

// NewScheduleConfigStore starts with a 12-hour interval at offset 0, the
// archive's natural synoptic cadence.
func NewScheduleConfigStore() *ScheduleConfigStore {
	return &ScheduleConfigStore{
		cfg: domain.ScheduleConfig{IntervalHours: 12, OffsetHours: 0},
	}
}

func (s *ScheduleConfigStore) Get(_ context.Context) (domain.ScheduleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, nil
}

// Update applies the non-nil fields and returns the resulting config.
func (s *ScheduleConfigStore) Update(_ context.Context, intervalHours, offsetHours *int) (domain.ScheduleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if intervalHours != nil {
		s.cfg.IntervalHours = *intervalHours
	}
	if offsetHours != nil {
		s.cfg.OffsetHours = *offsetHours
	}
	return s.cfg, nil
}
