package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queued task.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusDecoding     Status = "decoding"
	StatusTranscribing Status = "transcribing"
	StatusAligning     Status = "aligning"
	StatusDiarizing    Status = "diarizing"
	StatusRefining     Status = "refining"
	StatusEncoding     Status = "encoding"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusDecoding,
	StatusTranscribing,
	StatusAligning,
	StatusDiarizing,
	StatusRefining,
	StatusEncoding,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusDecoding:     {},
	StatusTranscribing: {},
	StatusAligning:     {},
	StatusDiarizing:    {},
	StatusRefining:     {},
	StatusEncoding:     {},
}

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalTasks       int
	Error            string
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}

// Task represents a transcription job persisted in SQLite.
type Task struct {
	ID                  int64
	Status              Status
	SourcePath          string
	Title               string
	OptionsJSON         string
	StageResults        string
	ErrorKind           string
	ErrorMessage        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ProgressStage       string
	ProgressPercent     float64
	ProgressMessage     string
	DiarizationDegraded bool
	RefinementDegraded  bool
	RefinementPartial   bool
	CancelRequested     bool
	LastHeartbeat       *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (t Task) IsProcessing() bool {
	return IsProcessingStatus(t.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal returns true when the task has finished for good.
func (t Task) IsTerminal() bool {
	return IsTerminalStatus(t.Status)
}

// IsTerminalStatus reports whether a status is completed, failed, or cancelled.
func IsTerminalStatus(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// InitProgress resets progress fields for a new stage.
// If ProgressStage is currently empty, it is set to the provided stage value;
// otherwise the existing stage is preserved (to support resume scenarios).
// ProgressMessage is set to message, ProgressPercent is reset to 0, and the
// recorded error is cleared.
func (t *Task) InitProgress(stage, message string) {
	if t.ProgressStage == "" {
		t.ProgressStage = stage
	}
	t.ProgressMessage = message
	t.ProgressPercent = 0
	t.ErrorKind = ""
	t.ErrorMessage = ""
}

// SetProgress updates all three progress fields atomically.
// Use this instead of setting ProgressStage, ProgressPercent, and ProgressMessage individually.
func (t *Task) SetProgress(stage, message string, percent float64) {
	t.ProgressStage = stage
	t.ProgressMessage = message
	t.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
// Convenience method for stage completion.
func (t *Task) SetProgressComplete(stage, message string) {
	t.SetProgress(stage, message, 100)
}

// SetFailed marks the task as failed with the given classification and message.
// Clears heartbeat and sets progress fields appropriately.
func (t *Task) SetFailed(kind, message string) {
	t.Status = StatusFailed
	t.ErrorKind = kind
	t.ErrorMessage = message
	t.ProgressPercent = 0
	t.ProgressMessage = message
	t.LastHeartbeat = nil
	t.ProgressStage = "Failed"
}

// StageKey returns the stage identifier used in logs and API presentation.
// Processing statuses map to the bare stage noun; every other status is
// already its own presentation name.
func (s Status) StageKey() string {
	switch s {
	case StatusDecoding:
		return "decode"
	case StatusTranscribing:
		return "transcribe"
	case StatusAligning:
		return "align"
	case StatusDiarizing:
		return "diarize"
	case StatusRefining:
		return "refine"
	case StatusEncoding:
		return "encode"
	default:
		return string(s)
	}
}
