package sounding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
)

// StationLister fetches the upstream station list for an observation time.
type StationLister interface {
	FetchStations(ctx context.Context, t time.Time) ([]domain.StationPayload, error)
}

// StationService refreshes the local station table from the upstream list.
type StationService struct {
	stations domain.StationRepository
	source   StationLister
	logger   *slog.Logger
}

// NewStationService wires the refresher over the station repository and the
// upstream list source.
func NewStationService(stations domain.StationRepository, source StationLister, logger *slog.Logger) *StationService {
	return &StationService{stations: stations, source: source, logger: logger}
}

// RefreshForTime pulls the station list active at t and upserts every entry.
// A per-station upsert failure is logged and skipped so one bad row cannot
// abort the refresh. Returns the number upserted and the number fetched.
func (s *StationService) RefreshForTime(ctx context.Context, t time.Time) (updated, fetched int, err error) {
	payloads, err := s.source.FetchStations(ctx, t)
	if err != nil {
		return 0, 0, fmt.Errorf("refresh stations: %w", err)
	}

	now := domain.Now()
	for _, payload := range payloads {
		if _, err := s.stations.Upsert(ctx, payload, now); err != nil {
			s.logger.Warn("station upsert failed", "code", payload.Code, "error", err)
			continue
		}
		updated++
	}

	s.logger.Info("station list refreshed",
		"for_time", t.UTC(), "fetched", len(payloads), "updated", updated)
	return updated, len(payloads), nil
}

// RefreshOne upserts a single station payload, used when a fetch discovers a
// station not yet in the table.
func (s *StationService) RefreshOne(ctx context.Context, payload domain.StationPayload) (*domain.Station, error) {
	return s.stations.Upsert(ctx, payload, domain.Now())
}
