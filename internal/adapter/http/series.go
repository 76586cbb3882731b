package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/sounding-data-service/internal/measurement"
)

// SeriesService answers telemetry series queries.
type SeriesService interface {
	ListSeries(ctx context.Context, deviceID string, start, end *time.Time, limit int) (*measurement.SeriesResult, error)
}

type seriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	ADC1      float64   `json:"adc1"`
	ADC2      float64   `json:"adc2"`
	ADC3      float64   `json:"adc3"`
	Temps     []float64 `json:"temps,omitempty"`
	BusV      float64   `json:"bus_v"`
	BusI      float64   `json:"bus_i"`
	BusP      float64   `json:"bus_p"`
	ADC1Cal   *float64  `json:"adc1_cal,omitempty"`
	ADC2Cal   *float64  `json:"adc2_cal,omitempty"`
	ADC3Cal   *float64  `json:"adc3_cal,omitempty"`
}

type seriesResponse struct {
	Points      []seriesPoint `json:"points"`
	RawCount    int           `json:"raw_count"`
	Aggregated  bool          `json:"aggregated"`
	BucketLabel string        `json:"bucket,omitempty"`
}

// registerSeriesRoutes adds the telemetry series read route.
func (s *Server) registerSeriesRoutes(mux *http.ServeMux, series SeriesService) {
	mux.HandleFunc("GET /devices/{id}/series", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		start, ok := parseTimeParam(w, q.Get("start"))
		if !ok {
			return
		}
		end, ok := parseTimeParam(w, q.Get("end"))
		if !ok {
			return
		}
		limit := 0
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
				return
			}
			limit = n
		}

		result, err := series.ListSeries(r.Context(), r.PathValue("id"), start, end, limit)
		if err != nil {
			s.logger.Error("series query failed", "device", r.PathValue("id"), "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}

		writeJSON(w, http.StatusOK, toSeriesResponse(result))
	})
}

func parseTimeParam(w http.ResponseWriter, raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid time bound"})
		return nil, false
	}
	return &t, true
}

func toSeriesResponse(result *measurement.SeriesResult) seriesResponse {
	points := make([]seriesPoint, len(result.Points))
	for i, p := range result.Points {
		points[i] = seriesPoint{
			Timestamp: p.Timestamp,
			ADC1:      p.ADC1,
			ADC2:      p.ADC2,
			ADC3:      p.ADC3,
			Temps:     p.Temps,
			BusV:      p.BusV,
			BusI:      p.BusI,
			BusP:      p.BusP,
			ADC1Cal:   p.ADC1Cal,
			ADC2Cal:   p.ADC2Cal,
			ADC3Cal:   p.ADC3Cal,
		}
	}
	return seriesResponse{
		Points:      points,
		RawCount:    result.RawCount,
		Aggregated:  result.Aggregated,
		BucketLabel: result.BucketLabel,
	}
}
