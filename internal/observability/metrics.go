package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// acquisition and export pipeline.
type Metrics struct {
	// Acquisition metrics.
	SoundingFetches *prometheus.CounterVec // labels: outcome={success,empty,error}
	FetchDuration   prometheus.Histogram
	SoundingsStored prometheus.Counter

	// Job metrics.
	BackfillJobs  *prometheus.CounterVec // labels: status={done,failed}
	ExportJobs    *prometheus.CounterVec // labels: status={done,failed}
	JobsInFlight  prometheus.Gauge
	QueueRunning  prometheus.Gauge
	QueueMessages *prometheus.CounterVec // labels: outcome={handled,skipped,error}

	// Schedule and series metrics.
	ScheduleTicks  *prometheus.CounterVec // labels: result={fired,skipped}
	SeriesRequests *prometheus.CounterVec // labels: mode={raw,aggregated,empty}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SoundingFetches,
		m.FetchDuration,
		m.SoundingsStored,
		m.BackfillJobs,
		m.ExportJobs,
		m.JobsInFlight,
		m.QueueRunning,
		m.QueueMessages,
		m.ScheduleTicks,
		m.SeriesRequests,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SoundingFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sounding_etl",
			Name:      "fetches_total",
			Help:      "Sounding fetches against the external archive by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sounding_etl",
			Name:      "fetch_duration_seconds",
			Help:      "External archive request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SoundingsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sounding_etl",
			Name:      "soundings_stored_total",
			Help:      "Soundings upserted into the store.",
		}),
		BackfillJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sounding_etl",
			Name:      "backfill_jobs_total",
			Help:      "Backfill jobs reaching a terminal status.",
		}, []string{"status"}),
		ExportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sounding_etl",
			Name:      "export_jobs_total",
			Help:      "Export jobs reaching a terminal status.",
		}, []string{"status"}),
		JobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sounding_etl",
			Name:      "jobs_in_flight",
			Help:      "Jobs currently being processed by this worker.",
		}),
		QueueRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sounding_etl",
			Name:      "queue_consumer_running",
			Help:      "1 when the job queue consumer loop is active.",
		}),
		QueueMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sounding_etl",
			Name:      "queue_messages_total",
			Help:      "Job queue messages by handling outcome.",
		}, []string{"outcome"}),
		ScheduleTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sounding_etl",
			Name:      "schedule_ticks_total",
			Help:      "Schedule tick evaluations by result.",
		}, []string{"result"}),
		SeriesRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sounding_etl",
			Name:      "series_requests_total",
			Help:      "Measurement series queries by response mode.",
		}, []string{"mode"}),
	}
}
