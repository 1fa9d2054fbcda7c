package api

import (
	"context"
	"fmt"
	"strings"

	"murmur/internal/queue"
	"murmur/internal/services"
	"murmur/internal/subtitles"
	"murmur/internal/transcript"
)

// ResultOutcome classifies whether a task's result can be served yet.
type ResultOutcome string

const (
	ResultReady     ResultOutcome = "ready"
	ResultPending   ResultOutcome = "pending"
	ResultFailed    ResultOutcome = "failed"
	ResultCancelled ResultOutcome = "cancelled"
	ResultNotFound  ResultOutcome = "not_found"
)

// TaskResult carries a rendered transcript, or the reason none is available.
// Body and ContentType are populated only for ResultReady.
type TaskResult struct {
	ID           int64
	Outcome      ResultOutcome
	Status       string
	Format       string
	ContentType  string
	Body         []byte
	ErrorKind    string
	ErrorMessage string
}

// Result renders a completed task's final transcript in the requested
// format, defaulting to JSON. Tasks that have not completed report their
// current state instead of an empty document.
func (s *TaskService) Result(ctx context.Context, id int64, format string) (*TaskResult, error) {
	if s == nil || s.store == nil {
		return &TaskResult{ID: id, Outcome: ResultNotFound}, nil
	}

	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = transcript.FormatJSON
	}
	if !transcript.KnownFormat(format) {
		return nil, services.Wrap(services.ErrValidation, "api", "resolve format",
			fmt.Sprintf("Unknown output format %q", format), nil)
	}

	task, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return &TaskResult{ID: id, Outcome: ResultNotFound}, nil
	}

	result := TaskResult{ID: id, Status: string(task.Status), Format: format}
	switch task.Status {
	case queue.StatusCompleted:
	case queue.StatusFailed:
		result.Outcome = ResultFailed
		result.ErrorKind = task.ErrorKind
		result.ErrorMessage = task.ErrorMessage
		return &result, nil
	case queue.StatusCancelled:
		result.Outcome = ResultCancelled
		return &result, nil
	default:
		result.Outcome = ResultPending
		return &result, nil
	}

	env, err := transcript.Parse(task.StageResults)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "api", "load result",
			"Stored stage results could not be parsed", err)
	}
	if len(env.Final) == 0 {
		return nil, services.Wrap(services.ErrTransient, "api", "load result",
			"Completed task has no final transcript", nil)
	}
	opts, err := task.Options()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "api", "load result",
			"Stored task options could not be parsed", err)
	}

	doc := subtitles.Document{
		Title:    strings.TrimSpace(task.Title),
		Speakers: transcript.Speakers(env.Final),
		Segments: env.Final,
	}
	if env.Transcribe != nil {
		doc.Language = env.Transcribe.Language
	}
	if env.Decode != nil {
		doc.Duration = env.Decode.Duration
	}

	body, err := subtitles.Render(format, doc, subtitles.Options{
		SpeakerPrefix: opts.SpeakerPrefix,
		IncludeWords:  opts.IncludeWords,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "api", "render result", "Result rendering failed", err)
	}

	result.Outcome = ResultReady
	result.ContentType = contentTypeFor(format)
	result.Body = body
	return &result, nil
}

// contentTypeFor maps an output format to its response content type.
func contentTypeFor(format string) string {
	switch format {
	case transcript.FormatSRT:
		return "application/x-subrip"
	case transcript.FormatVTT:
		return "text/vtt; charset=utf-8"
	default:
		return "application/json"
	}
}
