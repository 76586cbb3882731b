// Package export serializes stored soundings into downloadable CSV and zip
// artifacts on local disk.
package export

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/couchcryptid/sounding-data-service/internal/domain"
	"github.com/couchcryptid/sounding-data-service/internal/observability"
)

// Builder executes export jobs handed over by the job queue. Each job gets
// its own directory under baseDir so the artifact and its parent can be
// removed together after download.
type Builder struct {
	jobs      domain.SoundingExportJobRepository
	soundings domain.SoundingRepository
	stations  domain.StationRepository
	baseDir   string
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewBuilder wires an export builder writing artifacts under baseDir.
func NewBuilder(
	jobs domain.SoundingExportJobRepository,
	soundings domain.SoundingRepository,
	stations domain.StationRepository,
	baseDir string,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Builder {
	return &Builder{
		jobs:      jobs,
		soundings: soundings,
		stations:  stations,
		baseDir:   baseDir,
		logger:    logger,
		metrics:   metrics,
	}
}

// Process runs one export job to completion. Unknown and already-terminal
// jobs are logged and dropped. One sounding produces a bare CSV file; more
// than one produces a zip of CSVs with per-entry progress persisted as it
// goes.
func (b *Builder) Process(ctx context.Context, jobID string) error {
	job, err := b.jobs.Get(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		b.logger.Warn("export job not found, dropping", "job_id", jobID)
		return nil
	}
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		b.logger.Warn("export job already terminal, dropping",
			"job_id", jobID, "status", job.Status)
		return nil
	}

	b.metrics.JobsInFlight.Inc()
	defer b.metrics.JobsInFlight.Dec()

	running := domain.JobRunning
	if err := b.jobs.UpdateProgress(ctx, jobID, domain.ExportProgress{Status: &running}); err != nil {
		return err
	}

	soundings, err := b.resolve(ctx, job)
	if err != nil {
		b.failJob(ctx, jobID, err.Error())
		return nil
	}
	if len(soundings) == 0 {
		b.failJob(ctx, jobID, "soundings not found")
		return nil
	}

	total := len(soundings)
	if err := b.jobs.UpdateProgress(ctx, jobID, domain.ExportProgress{Total: &total}); err != nil {
		return err
	}

	label := b.stationLabel(ctx, job.StationID, soundings[0])

	dir := filepath.Join(b.baseDir, job.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.failJob(ctx, jobID, fmt.Sprintf("create export dir: %v", err))
		return nil
	}

	var fileName string
	if total == 1 {
		fileName, err = b.writeSingle(ctx, jobID, dir, label, soundings[0])
	} else {
		fileName, err = b.writeArchive(ctx, jobID, dir, label, soundings)
	}
	if err != nil {
		b.failJob(ctx, jobID, err.Error())
		return nil
	}

	done := domain.JobDone
	filePath := filepath.Join(dir, fileName)
	progress := domain.ExportProgress{
		Status:   &done,
		Done:     &total,
		FilePath: &filePath,
		FileName: &fileName,
	}
	if err := b.jobs.UpdateProgress(ctx, jobID, progress); err != nil {
		b.logger.Error("finalize export failed", "job_id", jobID, "error", err)
		return nil
	}

	b.metrics.ExportJobs.WithLabelValues(string(domain.JobDone)).Inc()
	b.logger.Info("export job finished",
		"job_id", jobID, "file", fileName, "soundings", total)
	return nil
}

// resolve loads the job's soundings, drops any that belong to another
// station, and sorts them by observation time.
func (b *Builder) resolve(ctx context.Context, job *domain.SoundingExportJob) ([]*domain.Sounding, error) {
	found, err := b.soundings.GetMany(ctx, job.SoundingIDs)
	if err != nil {
		return nil, fmt.Errorf("load soundings: %w", err)
	}
	matched := found[:0]
	for _, s := range found {
		if s.StationID == job.StationID {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SoundingTime.Before(matched[j].SoundingTime)
	})
	return matched, nil
}

func (b *Builder) stationLabel(ctx context.Context, stationID string, fallback *domain.Sounding) string {
	station, err := b.stations.GetByID(ctx, stationID)
	if err == nil {
		return station.Label()
	}
	if fallback.StationName != "" {
		return fallback.StationName
	}
	return "station"
}

func (b *Builder) writeSingle(ctx context.Context, jobID, dir, label string, s *domain.Sounding) (string, error) {
	fileName := csvFileName(label, s)
	f, err := os.Create(filepath.Join(dir, fileName))
	if err != nil {
		return "", fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	if err := writeCSV(f, s); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}

	one := 1
	if err := b.jobs.UpdateProgress(ctx, jobID, domain.ExportProgress{Done: &one}); err != nil {
		b.logger.Warn("export progress update failed", "job_id", jobID, "error", err)
	}
	return fileName, nil
}

func (b *Builder) writeArchive(ctx context.Context, jobID, dir, label string, soundings []*domain.Sounding) (string, error) {
	fileName := slugName(label) + "_" + shortID(jobID) + ".zip"
	f, err := os.Create(filepath.Join(dir, fileName))
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	done := 0
	for _, s := range soundings {
		entry, err := zw.Create(csvFileName(label, s))
		if err != nil {
			return "", fmt.Errorf("create archive entry: %w", err)
		}
		if err := writeCSV(entry, s); err != nil {
			return "", fmt.Errorf("write archive entry: %w", err)
		}

		done++
		if err := b.jobs.UpdateProgress(ctx, jobID, domain.ExportProgress{Done: &done}); err != nil {
			b.logger.Warn("export progress update failed", "job_id", jobID, "error", err)
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}
	return fileName, nil
}

func (b *Builder) failJob(ctx context.Context, jobID, message string) {
	status := domain.JobFailed
	if err := b.jobs.UpdateProgress(ctx, jobID, domain.ExportProgress{Status: &status, Error: &message}); err != nil {
		b.logger.Error("fail export update failed", "job_id", jobID, "error", err)
	}
	b.metrics.ExportJobs.WithLabelValues(string(domain.JobFailed)).Inc()
}

// writeCSV renders one sounding as a semicolon-delimited table: a header row
// of labeled columns, then the cells with nulls as empty fields.
func writeCSV(w io.Writer, s *domain.Sounding) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(s.Columns); err != nil {
		return err
	}
	record := make([]string, len(s.Columns))
	for _, row := range s.Rows {
		for i := range record {
			if i < len(row) {
				record[i] = row[i].Render()
			} else {
				record[i] = ""
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var slugPattern = regexp.MustCompile(`[^A-Za-z0-9]+`)

// slugName reduces a station label to a filename-safe token.
func slugName(label string) string {
	slug := slugPattern.ReplaceAllString(label, "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return "station"
	}
	return slug
}

// csvFileName names one CSV after the sounding's own station name and the
// observation hour, e.g. "Fort_McMurray_2024_03_05_12.csv". The station-table
// label fills in when the sounding carries no name of its own.
func csvFileName(label string, s *domain.Sounding) string {
	name := s.StationName
	if name == "" {
		name = label
	}
	return slugName(name) + "_" + s.SoundingTime.UTC().Format("2006_01_02_15") + ".csv"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
