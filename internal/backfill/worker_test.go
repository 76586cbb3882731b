package backfill

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
	"github.com/couchcryptid/sounding-data-service/internal/observability"
	"github.com/couchcryptid/sounding-data-service/internal/store/memory"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []time.Time
	payload func(t time.Time) (*domain.SoundingPayload, error)
}

func (f *fakeFetcher) FetchSounding(_ context.Context, _ string, t time.Time) (*domain.SoundingPayload, error) {
	f.mu.Lock()
	f.calls = append(f.calls, t)
	f.mu.Unlock()
	if f.payload == nil {
		return nil, nil
	}
	return f.payload(t)
}

type harness struct {
	worker    *Worker
	jobs      *memory.JobStore
	stations  *memory.StationStore
	soundings *memory.SoundingStore
	fetcher   *fakeFetcher
}

func newHarness(t *testing.T, fetcher *fakeFetcher) *harness {
	t.Helper()
	jobs := memory.NewJobStore()
	stations := memory.NewStationStore()
	soundings := memory.NewSoundingStore()
	worker := NewWorker(
		jobs, stations, soundings, fetcher, 2,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting(),
	)
	return &harness{worker: worker, jobs: jobs, stations: stations, soundings: soundings, fetcher: fetcher}
}

func (h *harness) addStation(t *testing.T) *domain.Station {
	t.Helper()
	station, err := h.stations.Upsert(context.Background(), domain.StationPayload{Code: "45004", Name: "Fort McMurray"}, time.Now())
	require.NoError(t, err)
	return station
}

func profilePayload() *domain.SoundingPayload {
	return &domain.SoundingPayload{
		StationName: "45004 Fort McMurray",
		Columns:     []string{"PRES,hPa", "HGHT,m"},
		Rows: [][]domain.Cell{
			{domain.NumCell(1000), domain.NumCell(100)},
		},
		RowCount: 1,
	}
}

func TestProcess_StoresFetchedSoundings(t *testing.T) {
	fetcher := &fakeFetcher{payload: func(time.Time) (*domain.SoundingPayload, error) {
		return profilePayload(), nil
	}}
	h := newHarness(t, fetcher)
	station := h.addStation(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	job, err := h.jobs.Create(ctx, station.ID, start, start.Add(24*time.Hour), 12)
	require.NoError(t, err)

	require.NoError(t, h.worker.Process(ctx, job.ID))

	got, err := h.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobDone, got.Status)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 3, got.Done)
	assert.Empty(t, got.Error)

	count, err := h.soundings.Count(ctx, station.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	assert.Len(t, fetcher.calls, 3)
}

func TestProcess_EmptySlotsAreNotStored(t *testing.T) {
	fetcher := &fakeFetcher{} // every slot comes back (nil, nil)
	h := newHarness(t, fetcher)
	station := h.addStation(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	job, err := h.jobs.Create(ctx, station.ID, start, start.Add(12*time.Hour), 12)
	require.NoError(t, err)

	require.NoError(t, h.worker.Process(ctx, job.ID))

	got, err := h.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobDone, got.Status)
	assert.Equal(t, 2, got.Done)

	count, err := h.soundings.Count(ctx, station.ID, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestProcess_ZeroRowPayloadIsNotStored(t *testing.T) {
	fetcher := &fakeFetcher{payload: func(time.Time) (*domain.SoundingPayload, error) {
		return &domain.SoundingPayload{StationName: "45004", RowCount: 0}, nil
	}}
	h := newHarness(t, fetcher)
	station := h.addStation(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	job, err := h.jobs.Create(ctx, station.ID, start, start, 12)
	require.NoError(t, err)

	require.NoError(t, h.worker.Process(ctx, job.ID))

	count, err := h.soundings.Count(ctx, station.ID, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestProcess_PartialFailureFinishesDoneWithError(t *testing.T) {
	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{payload: func(at time.Time) (*domain.SoundingPayload, error) {
		if at.Equal(start.Add(12 * time.Hour)) {
			return nil, errors.New("archive timeout")
		}
		return profilePayload(), nil
	}}
	h := newHarness(t, fetcher)
	station := h.addStation(t)
	ctx := context.Background()

	job, err := h.jobs.Create(ctx, station.ID, start, start.Add(24*time.Hour), 12)
	require.NoError(t, err)

	require.NoError(t, h.worker.Process(ctx, job.ID))

	got, err := h.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobDone, got.Status)
	assert.Equal(t, 3, got.Done)
	assert.Contains(t, got.Error, "archive timeout")

	count, err := h.soundings.Count(ctx, station.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestProcess_MissingStationFailsJob(t *testing.T) {
	h := newHarness(t, &fakeFetcher{})
	ctx := context.Background()

	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	job, err := h.jobs.Create(ctx, "ghost-station", start, start, 12)
	require.NoError(t, err)

	require.NoError(t, h.worker.Process(ctx, job.ID))

	got, err := h.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, got.Status)
	assert.Equal(t, "station not found", got.Error)
}

func TestProcess_TerminalJobIsDropped(t *testing.T) {
	fetcher := &fakeFetcher{}
	h := newHarness(t, fetcher)
	station := h.addStation(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	job, err := h.jobs.Create(ctx, station.ID, start, start, 12)
	require.NoError(t, err)

	done := domain.JobDone
	require.NoError(t, h.jobs.UpdateProgress(ctx, job.ID, domain.JobProgress{Status: &done}))

	require.NoError(t, h.worker.Process(ctx, job.ID))
	assert.Empty(t, fetcher.calls)
}

func TestProcess_UnknownJobIsDropped(t *testing.T) {
	h := newHarness(t, &fakeFetcher{})
	assert.NoError(t, h.worker.Process(context.Background(), "missing"))
}

func TestBuildTimes(t *testing.T) {
	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	times := buildTimes(start, start.Add(24*time.Hour), 12)
	require.Len(t, times, 3)
	assert.Equal(t, start, times[0])
	assert.Equal(t, start.Add(24*time.Hour), times[2])

	// Step overshooting the end keeps only the slots inside the window.
	times = buildTimes(start, start.Add(20*time.Hour), 12)
	require.Len(t, times, 2)

	assert.Len(t, buildTimes(start, start, 12), 1)
	assert.Nil(t, buildTimes(start, start.Add(-time.Hour), 12))
	assert.Nil(t, buildTimes(start, start.Add(time.Hour), 0))
}
