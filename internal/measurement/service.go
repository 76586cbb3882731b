// Package measurement serves device telemetry series, downsampling large
// windows into bucket averages so responses stay bounded.
package measurement

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
	"github.com/couchcryptid/sounding-data-service/internal/observability"
)

// SeriesResult is one telemetry series response. When Aggregated is set the
// points are synthetic bucket averages of width BucketSeconds, labeled for
// display; otherwise they are raw rows.
type SeriesResult struct {
	Points        []*domain.MeasurementPoint
	RawCount      int
	BucketSeconds int
	BucketLabel   string
	Aggregated    bool
}

// Service answers series queries over the measurement store.
type Service struct {
	measurements domain.MeasurementRepository
	defaultLimit int
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewService wires the series reader. defaultLimit caps the point count when
// the caller does not pass one.
func NewService(measurements domain.MeasurementRepository, defaultLimit int, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if defaultLimit < 1 {
		defaultLimit = 500
	}
	return &Service{
		measurements: measurements,
		defaultLimit: defaultLimit,
		logger:       logger,
		metrics:      metrics,
	}
}

// Record stores one raw telemetry row.
func (s *Service) Record(ctx context.Context, m *domain.Measurement) error {
	return s.measurements.Add(ctx, m)
}

// ListSeries returns at most limit points for the device and window. Windows
// with up to limit rows come back raw; larger windows are averaged into
// equal-width time buckets sized so the bucket count fits the limit. Bad time
// bounds fall back to raw rows truncated at the limit.
func (s *Service) ListSeries(ctx context.Context, deviceID string, start, end *time.Time, limit int) (*SeriesResult, error) {
	if limit < 1 {
		limit = s.defaultLimit
	}

	rawCount, err := s.measurements.Count(ctx, deviceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("count series: %w", err)
	}
	if rawCount == 0 {
		s.metrics.SeriesRequests.WithLabelValues("empty").Inc()
		return &SeriesResult{Points: []*domain.MeasurementPoint{}}, nil
	}

	if rawCount <= limit {
		return s.rawSeries(ctx, deviceID, start, end, limit, rawCount)
	}

	minTime, maxTime, err := s.measurements.Bounds(ctx, deviceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("series bounds: %w", err)
	}
	if minTime == nil || maxTime == nil || !maxTime.After(*minTime) {
		// Degenerate span; aggregation cannot size buckets.
		return s.rawSeries(ctx, deviceID, start, end, limit, rawCount)
	}

	span := maxTime.Unix() - minTime.Unix()
	bucketSeconds := int(math.Ceil(float64(span) / float64(limit)))
	if bucketSeconds < 1 {
		bucketSeconds = 1
	}

	points, err := s.measurements.ListAggregated(ctx, deviceID, start, end, bucketSeconds, limit)
	if err != nil {
		return nil, fmt.Errorf("aggregate series: %w", err)
	}

	s.metrics.SeriesRequests.WithLabelValues("aggregated").Inc()
	s.logger.Debug("series aggregated",
		"device", deviceID, "raw", rawCount,
		"buckets", len(points), "bucket_seconds", bucketSeconds)
	return &SeriesResult{
		Points:        points,
		RawCount:      rawCount,
		BucketSeconds: bucketSeconds,
		BucketLabel:   formatBucket(bucketSeconds),
		Aggregated:    true,
	}, nil
}

func (s *Service) rawSeries(ctx context.Context, deviceID string, start, end *time.Time, limit, rawCount int) (*SeriesResult, error) {
	rows, err := s.measurements.List(ctx, deviceID, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	points := make([]*domain.MeasurementPoint, len(rows))
	for i, m := range rows {
		points[i] = domain.PointFromMeasurement(m)
	}
	s.metrics.SeriesRequests.WithLabelValues("raw").Inc()
	return &SeriesResult{Points: points, RawCount: rawCount}, nil
}

// formatBucket renders a bucket width for display: "45s", "1.5m", "2h".
// Fractions keep one decimal and drop it when whole.
func formatBucket(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return trimUnit(float64(seconds)/60, "m")
	}
	return trimUnit(float64(seconds)/3600, "h")
}

func trimUnit(v float64, unit string) string {
	rounded := math.Round(v*10) / 10
	if rounded == math.Trunc(rounded) {
		return fmt.Sprintf("%d%s", int(rounded), unit)
	}
	return fmt.Sprintf("%.1f%s", rounded, unit)
}
