package api

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"murmur/internal/queue"
	"murmur/internal/stage"
	"murmur/internal/transcript"
	"murmur/internal/workflow"
)

// FromTask converts a queue record to its API representation.
func FromTask(task *queue.Task) TaskView {
	if task == nil {
		return TaskView{}
	}

	dto := TaskView{
		ID:                  task.ID,
		Title:               task.Title,
		SourcePath:          task.SourcePath,
		Status:              string(task.Status),
		Progress:            progressView(task),
		ErrorKind:           task.ErrorKind,
		ErrorMessage:        task.ErrorMessage,
		DiarizationDegraded: task.DiarizationDegraded,
		RefinementDegraded:  task.RefinementDegraded,
		RefinementPartial:   task.RefinementPartial,
		CancelRequested:     task.CancelRequested,
	}

	if !task.CreatedAt.IsZero() {
		dto.CreatedAt = task.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !task.UpdatedAt.IsZero() {
		dto.UpdatedAt = task.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	if raw := strings.TrimSpace(task.OptionsJSON); raw != "" {
		dto.Options = json.RawMessage(raw)
	}

	if env, err := transcript.Parse(task.StageResults); err == nil {
		if len(env.Final) > 0 {
			sum := env.Summarize()
			dto.Transcript = &TranscriptSummary{
				Language:     sum.Language,
				Duration:     sum.Duration,
				Speakers:     sum.Speakers,
				SegmentCount: sum.SegmentCount,
			}
		}
		if env.Encode != nil {
			dto.Artifacts = fromArtifacts(env.Encode.Artifacts)
		}
	}
	return dto
}

// FromTasks converts a slice of queue records into API DTOs.
func FromTasks(tasks []*queue.Task) []TaskView {
	if len(tasks) == 0 {
		return nil
	}
	out := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, FromTask(task))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:     summary.Running,
		Workers:     summary.Workers,
		QueueStats:  MergeQueueStats(summary.QueueStats),
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if summary.LastError != "" {
		wf.LastError = summary.LastError
	}
	if summary.LastTask != nil {
		last := FromTask(summary.LastTask)
		wf.LastTask = &last
	}
	return wf
}

// MergeQueueStats produces a string-keyed representation of queue stats.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StageHealthSlice converts a stage health map into a deterministic slice.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// progressView normalizes stored progress for display. Completed tasks
// always present as done no matter which stage wrote the last update, and
// tasks that never reached a stage borrow their status as the stage label.
func progressView(task *queue.Task) TaskProgress {
	progress := TaskProgress{
		Stage:   task.ProgressStage,
		Percent: task.ProgressPercent,
		Message: task.ProgressMessage,
	}
	if task.Status == queue.StatusCompleted {
		progress.Stage = "Completed"
		progress.Percent = 100
	}
	if progress.Stage == "" {
		progress.Stage = displayStage(task.Status)
	}
	return progress
}

// displayStage capitalizes a status for use as a progress stage label.
func displayStage(status queue.Status) string {
	s := string(status)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func fromArtifacts(artifacts []transcript.Artifact) []ArtifactView {
	if len(artifacts) == 0 {
		return nil
	}
	out := make([]ArtifactView, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, ArtifactView{Format: a.Format, Path: a.Path, Error: a.Error})
	}
	return out
}
