package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
)

// MeasurementStore implements domain.MeasurementRepository.
type MeasurementStore struct {
	mu   sync.RWMutex
	rows []*domain.Measurement
}

func NewMeasurementStore() *MeasurementStore {
	return &MeasurementStore{}
}

func (s *MeasurementStore) Add(_ context.Context, m *domain.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := copyMeasurement(m)
	if copied.ID == "" {
		copied.ID = uuid.NewString()
	}
	s.rows = append(s.rows, copied)
	return nil
}

func (s *MeasurementStore) List(_ context.Context, deviceID string, start, end *time.Time, limit int) ([]*domain.Measurement, error) {
	s.mu.RLock()
	matched := s.match(deviceID, start, end)
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]*domain.Measurement, len(matched))
	for i, m := range matched {
		out[i] = copyMeasurement(m)
	}
	return out, nil
}

func (s *MeasurementStore) Count(_ context.Context, deviceID string, start, end *time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.match(deviceID, start, end)), nil
}

// Bounds returns the min and max timestamps of the matching rows, or nils
// when nothing matches.
func (s *MeasurementStore) Bounds(_ context.Context, deviceID string, start, end *time.Time) (*time.Time, *time.Time, error) {
	s.mu.RLock()
	matched := s.match(deviceID, start, end)
	s.mu.RUnlock()

	if len(matched) == 0 {
		return nil, nil, nil
	}
	min, max := matched[0].Timestamp, matched[0].Timestamp
	for _, m := range matched[1:] {
		if m.Timestamp.Before(min) {
			min = m.Timestamp
		}
		if m.Timestamp.After(max) {
			max = m.Timestamp
		}
	}
	return &min, &max, nil
}

// ListAggregated averages matching rows into buckets of width bucketSeconds,
// keyed by floor(unix / width). Scalar channels take the arithmetic mean,
// calibrated channels average only the rows where they are present, and
// temperature arrays average position-wise with trailing empty positions
// trimmed. At most limit buckets are returned, in ascending time order.
func (s *MeasurementStore) ListAggregated(_ context.Context, deviceID string, start, end *time.Time, bucketSeconds, limit int) ([]*domain.MeasurementPoint, error) {
	if bucketSeconds < 1 {
		bucketSeconds = 1
	}

	s.mu.RLock()
	matched := s.match(deviceID, start, end)
	s.mu.RUnlock()

	if len(matched) == 0 {
		return []*domain.MeasurementPoint{}, nil
	}

	width := int64(bucketSeconds)
	grouped := make(map[int64][]*domain.Measurement)
	for _, m := range matched {
		key := m.Timestamp.Unix() / width
		grouped[key] = append(grouped[key], m)
	}

	keys := make([]int64, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	if limit > 0 && limit < len(keys) {
		keys = keys[:limit]
	}

	out := make([]*domain.MeasurementPoint, 0, len(keys))
	for _, k := range keys {
		out = append(out, averageBucket(k*width, grouped[k]))
	}
	return out, nil
}

func (s *MeasurementStore) match(deviceID string, start, end *time.Time) []*domain.Measurement {
	var matched []*domain.Measurement
	for _, m := range s.rows {
		if m.DeviceID != deviceID {
			continue
		}
		if start != nil && m.Timestamp.Before(*start) {
			continue
		}
		if end != nil && m.Timestamp.After(*end) {
			continue
		}
		matched = append(matched, m)
	}
	return matched
}

func averageBucket(bucketUnix int64, rows []*domain.Measurement) *domain.MeasurementPoint {
	point := &domain.MeasurementPoint{
		Timestamp: time.Unix(bucketUnix, 0).UTC(),
	}

	n := float64(len(rows))
	var tempSums []float64
	var tempCounts []int

	for _, m := range rows {
		point.ADC1 += m.ADC1
		point.ADC2 += m.ADC2
		point.ADC3 += m.ADC3
		point.BusV += m.BusV
		point.BusI += m.BusI
		point.BusP += m.BusP

		for i, t := range m.Temps {
			if i >= len(tempSums) {
				tempSums = append(tempSums, 0)
				tempCounts = append(tempCounts, 0)
			}
			tempSums[i] += t
			tempCounts[i]++
		}
	}

	point.ADC1 /= n
	point.ADC2 /= n
	point.ADC3 /= n
	point.BusV /= n
	point.BusI /= n
	point.BusP /= n

	point.ADC1Cal = averagePresent(rows, func(m *domain.Measurement) *float64 { return m.ADC1Cal })
	point.ADC2Cal = averagePresent(rows, func(m *domain.Measurement) *float64 { return m.ADC2Cal })
	point.ADC3Cal = averagePresent(rows, func(m *domain.Measurement) *float64 { return m.ADC3Cal })

	for i := range tempSums {
		if tempCounts[i] > 0 {
			point.Temps = append(point.Temps, tempSums[i]/float64(tempCounts[i]))
		}
	}
	return point
}

// averagePresent averages a nullable channel over the rows where it is set,
// or nil when no row has it.
func averagePresent(rows []*domain.Measurement, get func(*domain.Measurement) *float64) *float64 {
	var sum float64
	var count int
	for _, m := range rows {
		if v := get(m); v != nil {
			sum += *v
			count++
		}
	}
	if count == 0 {
		return nil
	}
	avg := sum / float64(count)
	return &avg
}

func copyMeasurement(in *domain.Measurement) *domain.Measurement {
	out := *in
	out.Temps = append([]float64(nil), in.Temps...)
	return &out
}
