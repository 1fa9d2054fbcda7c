package transcribing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"log/slog"

	"murmur/internal/config"
	"murmur/internal/logging"
	"murmur/internal/queue"
	"murmur/internal/services"
	"murmur/internal/services/asr"
	"murmur/internal/stage"
	"murmur/internal/transcript"
)

// Aligner manages the forced alignment stage.
type Aligner struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	client *asr.Client
}

// NewAligner constructs the align handler using default dependencies.
func NewAligner(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Aligner {
	client := asr.NewClient(asr.Config{BaseURL: cfg.ASR.BaseURL, Model: cfg.ASR.Model})
	return NewAlignerWithClient(cfg, store, logger, client)
}

// NewAlignerWithClient allows injecting the inference client (used in tests).
func NewAlignerWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client *asr.Client) *Aligner {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "aligner"))
	}
	return &Aligner{store: store, cfg: cfg, logger: stageLogger, client: client}
}

// SetLogger allows the workflow manager to route stage logs into the task-scoped log.
func (a *Aligner) SetLogger(logger *slog.Logger) {
	if a == nil {
		return
	}
	a.logger = logging.NewComponentLogger(logger, "aligner")
}

func (a *Aligner) Prepare(ctx context.Context, task *queue.Task) error {
	logger := logging.WithContext(ctx, a.logger)
	task.InitProgress("Aligning", "Attaching word timestamps")
	logger.Debug("starting alignment preparation")
	return nil
}

func (a *Aligner) Execute(ctx context.Context, task *queue.Task) error {
	logger := logging.WithContext(ctx, a.logger)
	if a.cfg == nil || a.client == nil {
		return services.Wrap(services.ErrConfiguration, "align", "execute", "Align stage is not configured", nil)
	}

	env, err := stage.ParseEnvelope(task.StageResults)
	if err != nil {
		return err
	}
	if env.Align != nil {
		logger.Debug("alignment already recorded; skipping",
			logging.Int("segments", len(env.Align.Segments)),
		)
		task.SetProgress("Aligning", "Alignment already recorded", 100)
		return nil
	}
	if env.Transcribe == nil {
		return services.Wrap(services.ErrValidation, "align", "locate transcript",
			"No transcription recorded for this task", nil)
	}

	if len(env.Transcribe.Segments) == 0 {
		env.Align = &transcript.AlignResult{Segments: []transcript.Segment{}}
		if err := queue.PersistEnvelope(ctx, a.store, task, env); err != nil {
			return services.Wrap(services.ErrTransient, "align", "persist results", "Failed to persist alignment results", err)
		}
		task.SetProgress("Aligning", "Nothing to align", 100)
		logger.Info("alignment skipped for empty transcript")
		return nil
	}

	audioPath := ""
	if env.Decode != nil {
		audioPath = strings.TrimSpace(env.Decode.AudioPath)
	}
	if audioPath == "" {
		return services.Wrap(services.ErrValidation, "align", "locate audio",
			"No extracted audio recorded for this task", nil)
	}
	if _, err := os.Stat(audioPath); err != nil {
		return services.Wrap(services.ErrTransient, "align", "locate audio",
			"Extracted audio disappeared from scratch; retry the task", err)
	}

	raw := make([]asr.RawSegment, 0, len(env.Transcribe.Segments))
	for _, seg := range env.Transcribe.Segments {
		raw = append(raw, asr.RawSegment{Text: seg.Text, Start: seg.Start, End: seg.End})
	}

	aligned, err := a.client.Align(ctx, audioPath, env.Transcribe.Language, raw)
	if err != nil {
		return err
	}
	if len(aligned) == 0 {
		return services.Wrap(services.ErrAlignmentMismatch, "align", "reconcile",
			"Aligner returned no segments for a non-empty transcript", nil)
	}

	transcript.SortSegments(aligned)
	transcript.Renumber(aligned)
	env.Align = &transcript.AlignResult{Segments: aligned}
	if err := queue.PersistEnvelope(ctx, a.store, task, env); err != nil {
		return services.Wrap(services.ErrTransient, "align", "persist results", "Failed to persist alignment results", err)
	}

	words := len(transcript.FlattenWords(aligned))
	task.SetProgress("Aligning", fmt.Sprintf("Aligned %d segments", len(aligned)), 100)
	logger.Info("alignment completed",
		logging.Int("segments", len(aligned)),
		logging.Int("words", words),
	)
	return nil
}

// HealthCheck verifies the inference server is reachable.
func (a *Aligner) HealthCheck(ctx context.Context) stage.Health {
	const name = "aligner"
	if a.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if a.client == nil {
		return stage.Unhealthy(name, "alignment client unavailable")
	}
	if err := a.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}
