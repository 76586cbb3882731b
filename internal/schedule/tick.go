// Package schedule drives periodic acquisition: an hourly tick that fetches
// the latest profile for every subscribed station, plus twice-daily station
// list refreshes, all on a cron scheduler.
package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/sounding-data-service/internal/backfill"
	"github.com/couchcryptid/sounding-data-service/internal/domain"
	"github.com/couchcryptid/sounding-data-service/internal/observability"
)

// Tick evaluates the global tick configuration once per hour and, when the
// hour lines up, fetches the target observation for every enabled
// subscription.
type Tick struct {
	config    domain.ScheduleConfigRepository
	schedule  domain.ScheduleRepository
	soundings domain.SoundingRepository
	fetcher   backfill.Fetcher
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewTick wires the hourly tick evaluator.
func NewTick(
	config domain.ScheduleConfigRepository,
	schedule domain.ScheduleRepository,
	soundings domain.SoundingRepository,
	fetcher backfill.Fetcher,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Tick {
	return &Tick{
		config:    config,
		schedule:  schedule,
		soundings: soundings,
		fetcher:   fetcher,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run evaluates one tick at the given wall-clock time. The tick fires when
// (hour - offset) mod interval == 0; a non-positive interval disables it. The
// target observation hour is (hour - offset) mod 24, on the previous day when
// that lands ahead of the current hour. Per-station failures are logged and
// skipped so one dead station cannot starve the rest.
func (t *Tick) Run(ctx context.Context, now time.Time) error {
	cfg, err := t.config.Get(ctx)
	if err != nil {
		return err
	}
	if cfg.IntervalHours <= 0 {
		return nil
	}

	now = now.UTC()
	diff := now.Hour() - cfg.OffsetHours
	if floorMod(diff, cfg.IntervalHours) != 0 {
		t.metrics.ScheduleTicks.WithLabelValues("skipped").Inc()
		return nil
	}

	targetHour := floorMod(diff, 24)
	target := time.Date(now.Year(), now.Month(), now.Day(), targetHour, 0, 0, 0, time.UTC)
	if targetHour > now.Hour() {
		target = target.AddDate(0, 0, -1)
	}

	items, err := t.schedule.List(ctx)
	if err != nil {
		return err
	}

	t.metrics.ScheduleTicks.WithLabelValues("fired").Inc()
	fetched := 0
	for _, item := range items {
		if !item.Enabled {
			continue
		}
		if err := t.acquire(ctx, item, target); err != nil {
			t.logger.Warn("scheduled acquisition failed",
				"station", item.StationCode, "target", target, "error", err)
			continue
		}
		fetched++
	}

	t.logger.Info("schedule tick fired",
		"target", target, "stations", len(items), "fetched", fetched)
	return nil
}

func (t *Tick) acquire(ctx context.Context, item *domain.ScheduleItem, target time.Time) error {
	payload, err := t.fetcher.FetchSounding(ctx, item.StationCode, target)
	if err != nil {
		t.metrics.SoundingFetches.WithLabelValues("error").Inc()
		return err
	}
	if payload == nil || payload.RowCount == 0 {
		t.metrics.SoundingFetches.WithLabelValues("empty").Inc()
		return nil
	}

	_, err = t.soundings.Upsert(ctx, &domain.Sounding{
		StationID:    item.StationID,
		SoundingTime: target,
		StationName:  payload.StationName,
		Columns:      payload.Columns,
		Rows:         payload.Rows,
		Units:        payload.Units,
		RawText:      payload.RawText,
		RowCount:     payload.RowCount,
	})
	if err != nil {
		return err
	}
	t.metrics.SoundingFetches.WithLabelValues("success").Inc()
	t.metrics.SoundingsStored.Inc()
	return nil
}

// floorMod returns a mod b with the sign of b, so negative hours wrap into
// the previous cycle instead of going negative.
func floorMod(a, b int) int {
	m := a % b
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}
