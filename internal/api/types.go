package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// TaskView describes a queue task in a transport-friendly format.
type TaskView struct {
	ID                  int64              `json:"id"`
	Title               string             `json:"title"`
	SourcePath          string             `json:"sourcePath"`
	Status              string             `json:"status"`
	Progress            TaskProgress       `json:"progress"`
	ErrorKind           string             `json:"errorKind,omitempty"`
	ErrorMessage        string             `json:"errorMessage,omitempty"`
	CreatedAt           string             `json:"createdAt,omitempty"`
	UpdatedAt           string             `json:"updatedAt,omitempty"`
	DiarizationDegraded bool               `json:"diarizationDegraded,omitempty"`
	RefinementDegraded  bool               `json:"refinementDegraded,omitempty"`
	RefinementPartial   bool               `json:"refinementPartial,omitempty"`
	CancelRequested     bool               `json:"cancelRequested,omitempty"`
	Options             json.RawMessage    `json:"options,omitempty"`
	Transcript          *TranscriptSummary `json:"transcript,omitempty"`
	Artifacts           []ArtifactView     `json:"artifacts,omitempty"`
}

// TaskProgress captures stage progress information for a task.
type TaskProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// TranscriptSummary condenses a finished transcript for list and detail views.
type TranscriptSummary struct {
	Language     string   `json:"language,omitempty"`
	Duration     float64  `json:"duration,omitempty"`
	Speakers     []string `json:"speakers,omitempty"`
	SegmentCount int      `json:"segmentCount"`
}

// ArtifactView is one encoded output file, or the error that prevented it.
type ArtifactView struct {
	Format string `json:"format"`
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Workers     int            `json:"workers"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastTask    *TaskView      `json:"lastTask,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// HealthReport summarizes collaborator readiness for the health endpoint.
type HealthReport struct {
	Healthy bool          `json:"healthy"`
	Stages  []StageHealth `json:"stages"`
}

// SubmitRequest is the submission payload for new tasks. Option fields are
// pointers so absent keys inherit the daemon's configured defaults; the keys
// match the stored options snapshot.
type SubmitRequest struct {
	Path                   string   `json:"path"`
	Title                  string   `json:"title,omitempty"`
	LanguageHint           *string  `json:"language_hint,omitempty"`
	Diarize                *bool    `json:"diarize,omitempty"`
	MinSpeakers            *int     `json:"min_speakers,omitempty"`
	MaxSpeakers            *int     `json:"max_speakers,omitempty"`
	Refine                 *bool    `json:"refine,omitempty"`
	SemanticSegmentation   *bool    `json:"semantic_segmentation,omitempty"`
	ErrorCorrection        *bool    `json:"error_correction,omitempty"`
	ExpressionOptimization *bool    `json:"expression_optimization,omitempty"`
	TranslateTo            *string  `json:"translate_to,omitempty"`
	Formats                []string `json:"formats,omitempty"`
	SpeakerPrefix          *bool    `json:"speaker_prefix,omitempty"`
	IncludeWords           *bool    `json:"include_words,omitempty"`
}

// TaskListResponse wraps a collection of tasks for API responses.
type TaskListResponse struct {
	Tasks []TaskView `json:"tasks"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Task TaskView `json:"task"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// ClearResponse reports how many tasks a clear operation removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// ErrorResponse is the uniform error payload for non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
