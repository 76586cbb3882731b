package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
)

// RefreshFunc refreshes the station list for one synoptic hour of today.
type RefreshFunc func(ctx context.Context, targetHour int) error

// Runner owns the cron scheduler: the acquisition tick at the top of every
// hour, and station list refreshes after each synoptic release (11Z for the
// 00Z list, 23Z for the 12Z list).
type Runner struct {
	scheduler *gocron.Scheduler
	tick      *Tick
	refresh   RefreshFunc
	logger    *slog.Logger
}

// NewRunner builds the scheduler; Start arms it.
func NewRunner(tick *Tick, refresh RefreshFunc, logger *slog.Logger) *Runner {
	return &Runner{
		scheduler: gocron.NewScheduler(time.UTC),
		tick:      tick,
		refresh:   refresh,
		logger:    logger,
	}
}

// Start registers the cron jobs and runs the scheduler in the background.
func (r *Runner) Start(ctx context.Context) error {
	_, err := r.scheduler.Cron("0 * * * *").Do(func() {
		if err := r.tick.Run(ctx, domain.Now()); err != nil {
			r.logger.Error("schedule tick failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	_, err = r.scheduler.Cron("0 11 * * *").Do(func() {
		if err := r.refresh(ctx, 0); err != nil {
			r.logger.Error("station refresh failed", "target_hour", 0, "error", err)
		}
	})
	if err != nil {
		return err
	}

	_, err = r.scheduler.Cron("0 23 * * *").Do(func() {
		if err := r.refresh(ctx, 12); err != nil {
			r.logger.Error("station refresh failed", "target_hour", 12, "error", err)
		}
	})
	if err != nil {
		return err
	}

	r.scheduler.StartAsync()
	r.logger.Info("schedule runner started")
	return nil
}

// Stop halts the scheduler and waits for running jobs to return.
func (r *Runner) Stop() {
	r.scheduler.Stop()
	r.logger.Info("schedule runner stopped")
}
