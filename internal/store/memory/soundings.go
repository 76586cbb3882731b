package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
)

// SoundingStore implements domain.SoundingRepository.
type SoundingStore struct {
	mu    sync.RWMutex
	byID  map[string]*domain.Sounding
	byKey map[string]string // stationID|RFC3339 time -> id
}

func NewSoundingStore() *SoundingStore {
	return &SoundingStore{
		byID:  make(map[string]*domain.Sounding),
		byKey: make(map[string]string),
	}
}

func soundingKey(stationID string, t time.Time) string {
	return stationID + "|" + t.UTC().Format(time.RFC3339)
}

// Upsert stores the sounding, replacing any existing row for the same station
// and observation time. The id of a replaced row is retained.
func (s *SoundingStore) Upsert(_ context.Context, in *domain.Sounding) (*domain.Sounding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := soundingKey(in.StationID, in.SoundingTime)
	id, ok := s.byKey[key]
	if !ok {
		id = uuid.NewString()
		s.byKey[key] = id
	}

	stored := copySounding(in)
	stored.ID = id
	stored.SoundingTime = in.SoundingTime.UTC()
	stored.FetchedAt = domain.Now()
	s.byID[id] = stored
	return copySounding(stored), nil
}

func (s *SoundingStore) Get(_ context.Context, id string) (*domain.Sounding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sounding, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copySounding(sounding), nil
}

// GetMany resolves the given ids, silently dropping unknown ones.
func (s *SoundingStore) GetMany(_ context.Context, ids []string) ([]*domain.Sounding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Sounding, 0, len(ids))
	for _, id := range ids {
		if sounding, ok := s.byID[id]; ok {
			out = append(out, copySounding(sounding))
		}
	}
	return out, nil
}

func (s *SoundingStore) List(_ context.Context, stationID string, start, end *time.Time, limit, offset int) ([]*domain.Sounding, error) {
	s.mu.RLock()
	matched := s.match(stationID, start, end)
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SoundingTime.Before(matched[j].SoundingTime)
	})

	if offset >= len(matched) {
		return []*domain.Sounding{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]*domain.Sounding, len(matched))
	for i, m := range matched {
		out[i] = copySounding(m)
	}
	return out, nil
}

func (s *SoundingStore) Count(_ context.Context, stationID string, start, end *time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.match(stationID, start, end)), nil
}

// match collects rows for a station inside the optional closed time window.
// Callers hold at least the read lock.
func (s *SoundingStore) match(stationID string, start, end *time.Time) []*domain.Sounding {
	var matched []*domain.Sounding
	for _, sounding := range s.byID {
		if sounding.StationID != stationID {
			continue
		}
		if start != nil && sounding.SoundingTime.Before(*start) {
			continue
		}
		if end != nil && sounding.SoundingTime.After(*end) {
			continue
		}
		matched = append(matched, sounding)
	}
	return matched
}

func copySounding(in *domain.Sounding) *domain.Sounding {
	out := *in
	out.Columns = append([]string(nil), in.Columns...)
	if in.Units != nil {
		out.Units = make(map[string]string, len(in.Units))
		for name, unit := range in.Units {
			out.Units[name] = unit
		}
	}
	out.Rows = make([][]domain.Cell, len(in.Rows))
	for i, row := range in.Rows {
		out.Rows[i] = append([]domain.Cell(nil), row...)
	}
	return &out
}
