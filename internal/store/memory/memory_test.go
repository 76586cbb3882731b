package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
)

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int) *int           { return &v }

func TestStationStore_UpsertKeepsID(t *testing.T) {
	ctx := context.Background()
	store := NewStationStore()

	first, err := store.Upsert(ctx, domain.StationPayload{Code: "45004", Name: "Fort McMurray"}, time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := store.Upsert(ctx, domain.StationPayload{Code: "45004", Name: "Fort McMurray CS", Lat: ptrFloat(56.65)}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Fort McMurray CS", second.Name)

	byCode, err := store.GetByCode(ctx, "45004")
	require.NoError(t, err)
	assert.Equal(t, second.Name, byCode.Name)

	byID, err := store.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Name, byID.Name)
}

func TestStationStore_NotFound(t *testing.T) {
	store := NewStationStore()
	_, err := store.GetByCode(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSoundingStore_UpsertReplacesSameSlot(t *testing.T) {
	ctx := context.Background()
	store := NewSoundingStore()
	when := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	first, err := store.Upsert(ctx, &domain.Sounding{StationID: "st-1", SoundingTime: when, RowCount: 10})
	require.NoError(t, err)

	second, err := store.Upsert(ctx, &domain.Sounding{StationID: "st-1", SoundingTime: when, RowCount: 20})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.RowCount)

	count, err := store.Count(ctx, "st-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSoundingStore_UnitsSurviveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSoundingStore()

	stored, err := store.Upsert(ctx, &domain.Sounding{
		StationID:    "st-1",
		SoundingTime: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
		Columns:      []string{"PRES,hPa", "HGHT,m"},
		Units:        map[string]string{"PRES": "hPa", "HGHT": "m"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"PRES": "hPa", "HGHT": "m"}, stored.Units)

	// Mutating the returned copy must not leak into the store.
	stored.Units["PRES"] = "mb"
	got, err := store.Get(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "hPa", got.Units["PRES"])
}

func TestSoundingStore_ListWindowAndPaging(t *testing.T) {
	ctx := context.Background()
	store := NewSoundingStore()
	base := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := store.Upsert(ctx, &domain.Sounding{
			StationID:    "st-1",
			SoundingTime: base.Add(time.Duration(i) * 12 * time.Hour),
		})
		require.NoError(t, err)
	}
	_, err := store.Upsert(ctx, &domain.Sounding{StationID: "st-2", SoundingTime: base})
	require.NoError(t, err)

	all, err := store.List(ctx, "st-1", nil, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i-1].SoundingTime.Before(all[i].SoundingTime))
	}

	start := base.Add(12 * time.Hour)
	end := base.Add(36 * time.Hour)
	windowed, err := store.List(ctx, "st-1", &start, &end, 0, 0)
	require.NoError(t, err)
	assert.Len(t, windowed, 3)

	paged, err := store.List(ctx, "st-1", nil, nil, 2, 1)
	require.NoError(t, err)
	require.Len(t, paged, 2)
	assert.Equal(t, base.Add(12*time.Hour), paged[0].SoundingTime)

	empty, err := store.List(ctx, "st-1", nil, nil, 10, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSoundingStore_GetManyDropsUnknown(t *testing.T) {
	ctx := context.Background()
	store := NewSoundingStore()

	s1, err := store.Upsert(ctx, &domain.Sounding{StationID: "st-1", SoundingTime: time.Now()})
	require.NoError(t, err)

	got, err := store.GetMany(ctx, []string{s1.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, s1.ID, got[0].ID)
}

func TestJobStore_UpdateProgressPartial(t *testing.T) {
	ctx := context.Background()
	store := NewJobStore()

	job, err := store.Create(ctx, "st-1", time.Now(), time.Now().Add(24*time.Hour), 12)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, job.Status)

	running := domain.JobRunning
	require.NoError(t, store.UpdateProgress(ctx, job.ID, domain.JobProgress{Status: &running, Total: ptrInt(3)}))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobRunning, got.Status)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 0, got.Done)

	require.NoError(t, store.UpdateProgress(ctx, job.ID, domain.JobProgress{Done: ptrInt(2)}))
	got, err = store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobRunning, got.Status)
	assert.Equal(t, 2, got.Done)

	assert.ErrorIs(t, store.UpdateProgress(ctx, "missing", domain.JobProgress{}), domain.ErrNotFound)
}

func TestExportJobStore_UpdateProgress(t *testing.T) {
	ctx := context.Background()
	store := NewExportJobStore()

	job, err := store.Create(ctx, "st-1", []string{"a", "b"})
	require.NoError(t, err)

	done := domain.JobDone
	path := "/exports/x/file.zip"
	name := "file.zip"
	require.NoError(t, store.UpdateProgress(ctx, job.ID, domain.ExportProgress{
		Status: &done, FilePath: &path, FileName: &name,
	}))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobDone, got.Status)
	assert.Equal(t, path, got.FilePath)
	assert.Equal(t, name, got.FileName)
	assert.Equal(t, []string{"a", "b"}, got.SoundingIDs)
}

func TestScheduleStore_AddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewScheduleStore()

	first, err := store.Add(ctx, "st-1", "45004")
	require.NoError(t, err)
	assert.True(t, first.Enabled)

	second, err := store.Add(ctx, "st-1", "45004")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	items, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	disabled, err := store.SetEnabled(ctx, first.ID, false)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)

	require.NoError(t, store.Delete(ctx, first.ID))
	items, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	// Deleting frees the station for re-subscription.
	third, err := store.Add(ctx, "st-1", "45004")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestScheduleConfigStore_PartialUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewScheduleConfigStore()

	cfg, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.IntervalHours)
	assert.Equal(t, 0, cfg.OffsetHours)

	cfg, err = store.Update(ctx, ptrInt(6), nil)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.IntervalHours)
	assert.Equal(t, 0, cfg.OffsetHours)

	cfg, err = store.Update(ctx, nil, ptrInt(3))
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.IntervalHours)
	assert.Equal(t, 3, cfg.OffsetHours)
}

func TestMeasurementStore_BoundsAndCount(t *testing.T) {
	ctx := context.Background()
	store := NewMeasurementStore()
	base := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		require.NoError(t, store.Add(ctx, &domain.Measurement{
			DeviceID:  "dev-1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			ADC1:      float64(i),
		}))
	}

	count, err := store.Count(ctx, "dev-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	min, max, err := store.Bounds(ctx, "dev-1", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, min)
	require.NotNil(t, max)
	assert.Equal(t, base, *min)
	assert.Equal(t, base.Add(3*time.Minute), *max)

	min, max, err = store.Bounds(ctx, "dev-2", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, min)
	assert.Nil(t, max)
}

func TestMeasurementStore_ListAggregated(t *testing.T) {
	ctx := context.Background()
	store := NewMeasurementStore()
	base := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	// Two rows in the first minute bucket, one in the second.
	require.NoError(t, store.Add(ctx, &domain.Measurement{
		DeviceID: "dev-1", Timestamp: base,
		ADC1: 10, Temps: []float64{1, 2}, ADC1Cal: ptrFloat(100),
	}))
	require.NoError(t, store.Add(ctx, &domain.Measurement{
		DeviceID: "dev-1", Timestamp: base.Add(30 * time.Second),
		ADC1: 20, Temps: []float64{3, 4, 5},
	}))
	require.NoError(t, store.Add(ctx, &domain.Measurement{
		DeviceID: "dev-1", Timestamp: base.Add(90 * time.Second),
		ADC1: 30,
	}))

	points, err := store.ListAggregated(ctx, "dev-1", nil, nil, 60, 10)
	require.NoError(t, err)
	require.Len(t, points, 2)

	first := points[0]
	assert.Equal(t, base, first.Timestamp)
	assert.InDelta(t, 15.0, first.ADC1, 1e-9)
	require.Len(t, first.Temps, 3)
	assert.InDelta(t, 2.0, first.Temps[0], 1e-9)
	assert.InDelta(t, 3.0, first.Temps[1], 1e-9)
	assert.InDelta(t, 5.0, first.Temps[2], 1e-9)
	require.NotNil(t, first.ADC1Cal)
	assert.InDelta(t, 100.0, *first.ADC1Cal, 1e-9)
	assert.Nil(t, first.ADC2Cal)

	second := points[1]
	assert.InDelta(t, 30.0, second.ADC1, 1e-9)
	assert.Empty(t, second.Temps)
}

func TestMeasurementStore_ListAggregatedLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMeasurementStore()
	base := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Add(ctx, &domain.Measurement{
			DeviceID:  "dev-1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	points, err := store.ListAggregated(ctx, "dev-1", nil, nil, 60, 3)
	require.NoError(t, err)
	assert.Len(t, points, 3)
}
