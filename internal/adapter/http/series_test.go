package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
	"github.com/couchcryptid/sounding-data-service/internal/measurement"
	"github.com/couchcryptid/sounding-data-service/internal/observability"
	"github.com/couchcryptid/sounding-data-service/internal/store/memory"
)

func newSeriesServer(t *testing.T) (*Server, *memory.MeasurementStore) {
	t.Helper()
	store := memory.NewMeasurementStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := measurement.NewService(store, 500, logger, observability.NewMetricsForTesting())
	srv := NewServer(":0", &fakeReadiness{}, nil, svc, memory.NewExportJobStore(), logger)
	return srv, store
}

func TestSeriesRoute(t *testing.T) {
	srv, store := newSeriesServer(t)
	base := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Add(context.Background(), &domain.Measurement{
			DeviceID:  "dev-1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			ADC1:      float64(i),
		}))
	}

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/devices/dev-1/series", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"raw_count":3`)
	assert.Contains(t, rec.Body.String(), `"aggregated":false`)
}

func TestSeriesRoute_BadParams(t *testing.T) {
	srv, _ := newSeriesServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/devices/dev-1/series?start=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/devices/dev-1/series?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
