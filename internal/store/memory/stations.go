// Package memory holds in-process implementations of the domain repositories.
// They back the single-node deployment and the test suites; every method is
// safe for concurrent use.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
)

// StationStore implements domain.StationRepository.
type StationStore struct {
	mu     sync.RWMutex
	byID   map[string]*domain.Station
	byCode map[string]string // code -> id
}

func NewStationStore() *StationStore {
	return &StationStore{
		byID:   make(map[string]*domain.Station),
		byCode: make(map[string]string),
	}
}

func (s *StationStore) GetByCode(_ context.Context, code string) (*domain.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyStation(s.byID[id]), nil
}

func (s *StationStore) GetByID(_ context.Context, id string) (*domain.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	station, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyStation(station), nil
}

// Upsert inserts or refreshes the station identified by payload.Code.
// The internal id is stable across refreshes.
func (s *StationStore) Upsert(_ context.Context, payload domain.StationPayload, updatedAt time.Time) (*domain.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byCode[payload.Code]
	if !ok {
		id = uuid.NewString()
		s.byCode[payload.Code] = id
	}
	station := &domain.Station{
		ID:        id,
		Code:      payload.Code,
		Name:      payload.Name,
		Lat:       copyFloat(payload.Lat),
		Lon:       copyFloat(payload.Lon),
		Src:       payload.Src,
		UpdatedAt: updatedAt,
	}
	s.byID[id] = station
	return copyStation(station), nil
}

func copyStation(in *domain.Station) *domain.Station {
	out := *in
	out.Lat = copyFloat(in.Lat)
	out.Lon = copyFloat(in.Lon)
	return &out
}

func copyFloat(in *float64) *float64 {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}
