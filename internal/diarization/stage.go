package diarization

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"murmur/internal/config"
	"murmur/internal/logging"
	"murmur/internal/queue"
	"murmur/internal/services"
	"murmur/internal/services/diarizer"
	"murmur/internal/stage"
	"murmur/internal/transcript"
)

// Diarizer manages the speaker attribution stage. Diarization is an
// enhancement: inference failures degrade the task instead of failing it.
type Diarizer struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	client *diarizer.Client
}

// NewDiarizer constructs the diarize handler using default dependencies.
func NewDiarizer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Diarizer {
	client := diarizer.NewClient(diarizer.Config{
		BaseURL:     cfg.Diarization.BaseURL,
		MinSpeakers: cfg.Diarization.MinSpeakers,
		MaxSpeakers: cfg.Diarization.MaxSpeakers,
	})
	return NewDiarizerWithClient(cfg, store, logger, client)
}

// NewDiarizerWithClient allows injecting the inference client (used in tests).
func NewDiarizerWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client *diarizer.Client) *Diarizer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "diarizer"))
	}
	return &Diarizer{store: store, cfg: cfg, logger: stageLogger, client: client}
}

// SetLogger allows the workflow manager to route stage logs into the task-scoped log.
func (d *Diarizer) SetLogger(logger *slog.Logger) {
	if d == nil {
		return
	}
	d.logger = logging.NewComponentLogger(logger, "diarizer")
}

func (d *Diarizer) Prepare(ctx context.Context, task *queue.Task) error {
	logger := logging.WithContext(ctx, d.logger)
	task.InitProgress("Diarizing", "Identifying speakers")
	logger.Debug("starting diarization preparation")
	return nil
}

func (d *Diarizer) Execute(ctx context.Context, task *queue.Task) error {
	logger := logging.WithContext(ctx, d.logger)
	if d.cfg == nil || d.client == nil {
		return services.Wrap(services.ErrConfiguration, "diarize", "execute", "Diarize stage is not configured", nil)
	}

	env, err := stage.ParseEnvelope(task.StageResults)
	if err != nil {
		return err
	}
	if env.Diarize != nil {
		logger.Debug("diarization already recorded; skipping")
		task.SetProgress("Diarizing", "Speakers already attributed", 100)
		return nil
	}

	opts, err := stage.ParseOptions(task.OptionsJSON)
	if err != nil {
		return err
	}
	if !opts.Diarize || !d.cfg.Diarization.Enabled {
		logger.Debug("diarization disabled; skipping")
		task.SetProgress("Diarizing", "Diarization disabled", 100)
		return nil
	}

	if env.Align == nil {
		return services.Wrap(services.ErrValidation, "diarize", "locate alignment",
			"No alignment recorded for this task", nil)
	}
	if len(env.Align.Segments) == 0 {
		env.Diarize = &transcript.DiarizeResult{Segments: []transcript.Segment{}}
		if err := queue.PersistEnvelope(ctx, d.store, task, env); err != nil {
			return services.Wrap(services.ErrTransient, "diarize", "persist results", "Failed to persist diarization results", err)
		}
		task.SetProgress("Diarizing", "Nothing to diarize", 100)
		logger.Info("diarization skipped for empty transcript")
		return nil
	}

	audioPath := ""
	if env.Decode != nil {
		audioPath = strings.TrimSpace(env.Decode.AudioPath)
	}
	if audioPath == "" {
		return services.Wrap(services.ErrValidation, "diarize", "locate audio",
			"No extracted audio recorded for this task", nil)
	}

	turns, err := d.client.Diarize(ctx, audioPath, opts.MinSpeakers, opts.MaxSpeakers)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		task.DiarizationDegraded = true
		logger.Warn("diarization failed; continuing without speakers",
			logging.Error(err),
			logging.String(logging.FieldEventType, "diarization_degraded"),
			logging.String(logging.FieldErrorHint, "check the diarization service and its logs"),
			logging.String(logging.FieldImpact, "transcript will carry no speaker labels"),
		)
		if err := d.store.Update(ctx, task); err != nil {
			return services.Wrap(services.ErrTransient, "diarize", "persist degradation", "Failed to persist degradation flag", err)
		}
		task.SetProgress("Diarizing", "Diarization unavailable; continuing without speakers", 100)
		return nil
	}

	merged, stats := Apply(env.Align.Segments, turns)
	if stats.TurnOverlaps > 0 {
		logger.Warn("diarization returned overlapping turns",
			logging.Int("overlaps", stats.TurnOverlaps),
			logging.String(logging.FieldEventType, "diarization_turn_overlap"),
			logging.String(logging.FieldImpact, "overlapping spans resolved by longest overlap"),
		)
	}

	env.Diarize = &transcript.DiarizeResult{Turns: turns, Segments: merged}
	task.DiarizationDegraded = false
	if err := queue.PersistEnvelope(ctx, d.store, task, env); err != nil {
		return services.Wrap(services.ErrTransient, "diarize", "persist results", "Failed to persist diarization results", err)
	}

	task.SetProgress("Diarizing", fmt.Sprintf("Attributed %d of %d words across %d speakers", stats.Attributed, stats.Words, stats.Speakers), 100)
	logger.Info("diarization completed",
		logging.Int("turns", len(turns)),
		logging.Int("words", stats.Words),
		logging.Int("attributed_words", stats.Attributed),
		logging.Int("speakers", stats.Speakers),
	)
	return nil
}

// HealthCheck verifies the diarization service is reachable when the stage is
// enabled.
func (d *Diarizer) HealthCheck(ctx context.Context) stage.Health {
	const name = "diarizer"
	if d.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if !d.cfg.Diarization.Enabled {
		return stage.Healthy(name)
	}
	if d.client == nil {
		return stage.Unhealthy(name, "diarization client unavailable")
	}
	if err := d.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}
