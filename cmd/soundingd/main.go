package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/sounding-data-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/sounding-data-service/internal/adapter/kafka"
	"github.com/couchcryptid/sounding-data-service/internal/adapter/uwyo"
	"github.com/couchcryptid/sounding-data-service/internal/backfill"
	"github.com/couchcryptid/sounding-data-service/internal/config"
	"github.com/couchcryptid/sounding-data-service/internal/domain"
	"github.com/couchcryptid/sounding-data-service/internal/export"
	"github.com/couchcryptid/sounding-data-service/internal/measurement"
	"github.com/couchcryptid/sounding-data-service/internal/observability"
	"github.com/couchcryptid/sounding-data-service/internal/schedule"
	"github.com/couchcryptid/sounding-data-service/internal/sounding"
	"github.com/couchcryptid/sounding-data-service/internal/store/memory"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	stations := memory.NewStationStore()
	soundings := memory.NewSoundingStore()
	jobs := memory.NewJobStore()
	exportJobs := memory.NewExportJobStore()
	scheduleItems := memory.NewScheduleStore()
	scheduleConfig := memory.NewScheduleConfigStore()
	measurements := memory.NewMeasurementStore()

	archive := uwyo.NewClient(cfg, logger)
	enqueuer := kafkaadapter.NewEnqueuer(cfg, logger)
	consumer := kafkaadapter.NewConsumer(cfg, logger, metrics)

	stationSvc := sounding.NewStationService(stations, archive, logger)
	soundingSvc := sounding.NewService(stations, soundings, jobs, exportJobs, scheduleItems, scheduleConfig, enqueuer, logger)
	measurementSvc := measurement.NewService(measurements, cfg.SeriesDefaultLimit, logger, metrics)

	worker := backfill.NewWorker(jobs, stations, soundings, archive, cfg.SoundingsConcurrency, logger, metrics)
	builder := export.NewBuilder(exportJobs, soundings, stations, cfg.ExportDir, logger, metrics)
	consumer.Handle(domain.JobKindLoadSoundings, worker.Process)
	consumer.Handle(domain.JobKindExportSoundings, builder.Process)

	srv := httpadapter.NewServer(cfg.HTTPAddr, consumer, soundingSvc, measurementSvc, exportJobs, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runner *schedule.Runner
	if cfg.ScheduleEnabled {
		tick := schedule.NewTick(scheduleConfig, scheduleItems, soundings, archive, logger, metrics)
		refresh := func(ctx context.Context, targetHour int) error {
			now := domain.Now().UTC()
			target := time.Date(now.Year(), now.Month(), now.Day(), targetHour, 0, 0, 0, time.UTC)
			_, _, err := stationSvc.RefreshForTime(ctx, target)
			return err
		}
		runner = schedule.NewRunner(tick, refresh, logger)
		if err := runner.Start(ctx); err != nil {
			logger.Error("schedule runner start failed", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("schedule disabled")
	}

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start job consumer.
	go func() {
		if err := consumer.Run(ctx); err != nil {
			logger.Error("job consumer error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if runner != nil {
		runner.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := consumer.Close(); err != nil {
		logger.Error("kafka consumer close error", "error", err)
	}
	if err := enqueuer.Close(); err != nil {
		logger.Error("kafka enqueuer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
