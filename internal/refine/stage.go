package refine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"murmur/internal/config"
	"murmur/internal/diarization"
	"murmur/internal/logging"
	"murmur/internal/queue"
	"murmur/internal/services"
	"murmur/internal/services/llm"
	"murmur/internal/stage"
	"murmur/internal/transcript"
)

// Stage runs LLM refinement over the aligned transcript. Refinement is
// best effort: a model failure degrades the task instead of failing it, and
// the aligned transcript flows through unmodified.
type Stage struct {
	store   *queue.Store
	cfg     *config.Config
	logger  *slog.Logger
	client  *llm.Client
	refiner *Refiner
}

// NewStage creates a refine stage with an LLM client built from
// configuration.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Stage {
	llmCfg := cfg.GetLLM()
	client := llm.NewClient(llm.Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		Model:          llmCfg.Model,
		TimeoutSeconds: llmCfg.TimeoutSeconds,
	})
	return NewStageWithClient(cfg, store, logger, client)
}

// NewStageWithClient creates a refine stage with the provided client.
// Used by tests to point at a stub server.
func NewStageWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client *llm.Client) *Stage {
	return &Stage{
		store:   store,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "refine-stage"),
		client:  client,
		refiner: NewRefiner(client, logger),
	}
}

func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "refine-stage")
	s.refiner = NewRefiner(s.client, logger)
}

// Prepare initializes progress tracking for refinement.
func (s *Stage) Prepare(ctx context.Context, task *queue.Task) error {
	logger := logging.WithContext(ctx, s.logger)
	task.InitProgress("Refining", "Polishing transcript with the language model")
	logger.Debug("refine stage prepared")
	return nil
}

// Execute sends the transcript through the model and records the re-anchored
// segments. Speaker labels are reattributed afterwards because refinement
// reshapes segment boundaries.
func (s *Stage) Execute(ctx context.Context, task *queue.Task) error {
	logger := logging.WithContext(ctx, s.logger)
	if s.cfg == nil || s.client == nil {
		return services.Wrap(services.ErrConfiguration, "refine", "execute", "Refine stage is not configured", nil)
	}

	env, err := stage.ParseEnvelope(task.StageResults)
	if err != nil {
		return err
	}
	if env.Refine != nil {
		logger.Debug("refinement already recorded; skipping")
		task.SetProgress("Refining", "Refinement already recorded", 100)
		return nil
	}

	opts, err := stage.ParseOptions(task.OptionsJSON)
	if err != nil {
		return err
	}
	ropts := Options{
		SemanticSegmentation:   opts.SemanticSegmentation,
		ErrorCorrection:        opts.ErrorCorrection,
		ExpressionOptimization: opts.ExpressionOptimization,
		TranslateTo:            opts.TranslateTo,
		AnchorThreshold:        s.cfg.Refinement.AnchorThreshold,
	}
	if !opts.Refine || !s.cfg.Refinement.Enabled || !ropts.Enabled() {
		logger.Debug("refinement disabled; skipping")
		task.SetProgress("Refining", "Refinement disabled", 100)
		return nil
	}

	var segments []transcript.Segment
	switch {
	case env.Diarize != nil:
		segments = env.Diarize.Segments
	case env.Align != nil:
		segments = env.Align.Segments
	default:
		return services.Wrap(services.ErrValidation, "refine", "locate transcript",
			"No aligned transcript recorded for this task", nil)
	}
	if len(segments) == 0 {
		env.Refine = &transcript.RefineResult{Segments: []transcript.Segment{}}
		if err := queue.PersistEnvelope(ctx, s.store, task, env); err != nil {
			return services.Wrap(services.ErrTransient, "refine", "persist results", "Failed to persist refinement results", err)
		}
		task.SetProgress("Refining", "Nothing to refine", 100)
		logger.Info("refinement skipped for empty transcript")
		return nil
	}

	result, err := s.refiner.Refine(ctx, segments, ropts)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		task.RefinementDegraded = true
		logger.Warn("refinement failed; keeping the aligned transcript",
			logging.Error(err),
			logging.String(logging.FieldEventType, "refinement_degraded"),
			logging.String(logging.FieldErrorHint, "check the LLM endpoint and its credentials"),
			logging.String(logging.FieldImpact, "transcript keeps its unrefined segmentation"),
		)
		if err := s.store.Update(ctx, task); err != nil {
			return services.Wrap(services.ErrTransient, "refine", "persist degradation", "Failed to persist degradation flag", err)
		}
		task.SetProgress("Refining", "Refinement unavailable; keeping the aligned transcript", 100)
		return nil
	}

	refined := result.Segments
	if env.Diarize != nil && len(env.Diarize.Turns) > 0 {
		refined, _ = diarization.Apply(refined, env.Diarize.Turns)
	}

	env.Refine = &transcript.RefineResult{Segments: refined}
	task.RefinementDegraded = false
	task.RefinementPartial = result.Partial > 0
	if err := queue.PersistEnvelope(ctx, s.store, task, env); err != nil {
		return services.Wrap(services.ErrTransient, "refine", "persist results", "Failed to persist refinement results", err)
	}

	task.SetProgress("Refining", fmt.Sprintf("Refined into %d segments", len(refined)), 100)
	logger.Info("refinement completed",
		logging.Int("segments", len(refined)),
		logging.Int("anchored", result.Anchored),
		logging.Int("discarded", result.Discarded),
		logging.Int("partial", result.Partial),
	)
	return nil
}

// HealthCheck verifies the LLM endpoint is reachable when refinement is
// enabled.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	const name = "refiner"
	if s.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if !s.cfg.Refinement.Enabled {
		return stage.Healthy(name)
	}
	if s.client == nil {
		return stage.Unhealthy(name, "LLM client unavailable")
	}
	if err := s.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}
