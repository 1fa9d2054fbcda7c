package api

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"murmur/internal/config"
	"murmur/internal/queue"
	"murmur/internal/services"
)

// TaskService exposes queue operations returning API DTOs. Submissions are
// validated here so a bad request fails before it reaches the store.
type TaskService struct {
	store *queue.Store
	cfg   *config.Config
}

// NewTaskService constructs a TaskService around the provided store and
// configuration defaults.
func NewTaskService(store *queue.Store, cfg *config.Config) *TaskService {
	if store == nil {
		return nil
	}
	return &TaskService{store: store, cfg: cfg}
}

// Submit validates the request and enqueues a new task. Unset option fields
// inherit the daemon's configured defaults.
func (s *TaskService) Submit(ctx context.Context, req SubmitRequest) (*TaskView, error) {
	if s == nil || s.store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "submit", "Task service is not configured", nil)
	}

	path := strings.TrimSpace(req.Path)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "submit", "Source path is required", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "api", "submit", "Source path could not be resolved", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "api", "submit", "Source file does not exist", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "api", "submit", "Source path is a directory", nil)
	}

	opts := queue.OptionsFromConfig(s.cfg)
	req.apply(&opts)

	task, err := s.store.NewTask(ctx, abs, strings.TrimSpace(req.Title), opts)
	if err != nil {
		return nil, err
	}
	view := FromTask(task)
	return &view, nil
}

// List returns tasks filtered by status.
func (s *TaskService) List(ctx context.Context, statuses ...queue.Status) ([]TaskView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	tasks, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromTasks(tasks), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *TaskService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single task, nil when no task has the identifier.
func (s *TaskService) Describe(ctx context.Context, id int64) (*TaskView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	task, err := s.store.GetByID(ctx, id)
	if err != nil || task == nil {
		return nil, err
	}
	view := FromTask(task)
	return &view, nil
}

// Clear removes tasks matching the given statuses, or every task when no
// status is provided, and reports how many rows were deleted.
func (s *TaskService) Clear(ctx context.Context, statuses ...queue.Status) (int64, error) {
	if s == nil || s.store == nil {
		return 0, nil
	}
	return s.store.Clear(ctx, statuses...)
}

// apply overlays the request's explicit option fields onto the defaults
// snapshot. Nil pointers leave the default untouched.
func (r SubmitRequest) apply(opts *queue.Options) {
	if r.LanguageHint != nil {
		opts.LanguageHint = strings.TrimSpace(*r.LanguageHint)
	}
	if r.Diarize != nil {
		opts.Diarize = *r.Diarize
	}
	if r.MinSpeakers != nil {
		opts.MinSpeakers = *r.MinSpeakers
	}
	if r.MaxSpeakers != nil {
		opts.MaxSpeakers = *r.MaxSpeakers
	}
	if r.Refine != nil {
		opts.Refine = *r.Refine
	}
	if r.SemanticSegmentation != nil {
		opts.SemanticSegmentation = *r.SemanticSegmentation
	}
	if r.ErrorCorrection != nil {
		opts.ErrorCorrection = *r.ErrorCorrection
	}
	if r.ExpressionOptimization != nil {
		opts.ExpressionOptimization = *r.ExpressionOptimization
	}
	if r.TranslateTo != nil {
		opts.TranslateTo = strings.TrimSpace(*r.TranslateTo)
	}
	if len(r.Formats) > 0 {
		opts.Formats = queue.NormalizeFormats(r.Formats)
	}
	if r.SpeakerPrefix != nil {
		opts.SpeakerPrefix = *r.SpeakerPrefix
	}
	if r.IncludeWords != nil {
		opts.IncludeWords = *r.IncludeWords
	}
}
