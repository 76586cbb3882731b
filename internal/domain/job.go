package domain

import "time"

// JobStatus is the lifecycle state of a backfill or export job.
// Jobs move pending -> running -> done|failed and never leave a terminal state.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Terminal reports whether the status is done or failed.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// Job kinds dispatched through the job queue.
const (
	JobKindLoadSoundings   = "load_soundings"
	JobKindExportSoundings = "export_soundings"
)

// SoundingJob is a bulk backfill over [StartAt, EndAt] at StepHours spacing.
// Total is set once, before any fetch begins; Done counts completed attempts
// (success or error) and never exceeds Total. Error holds the latest failure
// message and may be set even when the job finishes done (partial success is
// reported, not hidden).
type SoundingJob struct {
	ID        string
	StationID string
	Status    JobStatus
	StartAt   time.Time
	EndAt     time.Time
	StepHours int
	Total     int
	Done      int
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SoundingExportJob serializes a validated set of soundings into a single CSV
// file (Total == 1) or a zip archive (Total > 1). The artifact is produced
// exactly once and is immutable thereafter.
type SoundingExportJob struct {
	ID          string
	StationID   string
	SoundingIDs []string
	Status      JobStatus
	Total       int
	Done        int
	Error       string
	FilePath    string
	FileName    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ScheduleItem subscribes one station to the periodic acquisition tick.
// At most one item exists per station.
type ScheduleItem struct {
	ID          string
	StationID   string
	StationCode string
	Enabled     bool
	CreatedAt   time.Time
}

// ScheduleConfig is the single global tick configuration. The tick fires at
// hour H when (H - OffsetHours) mod IntervalHours == 0; a non-positive
// interval disables ticking.
type ScheduleConfig struct {
	IntervalHours int
	OffsetHours   int
}
