package transcribing

import (
	"context"
	"fmt"
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

// Transcriber manages the speech recognition stage.
type Transcriber struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	client *asr.Client
}

// NewTranscriber constructs the transcribe handler using default dependencies.
func NewTranscriber(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Transcriber {
	client := asr.NewClient(asr.Config{BaseURL: cfg.ASR.BaseURL, Model: cfg.ASR.Model})
	return NewTranscriberWithClient(cfg, store, logger, client)
}

// NewTranscriberWithClient allows injecting the inference client (used in tests).
func NewTranscriberWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client *asr.Client) *Transcriber {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "transcriber"))
	}
	return &Transcriber{store: store, cfg: cfg, logger: stageLogger, client: client}
}

// SetLogger allows the workflow manager to route stage logs into the task-scoped log.
func (t *Transcriber) SetLogger(logger *slog.Logger) {
	if t == nil {
		return
	}
	t.logger = logging.NewComponentLogger(logger, "transcriber")
}

func (t *Transcriber) Prepare(ctx context.Context, task *queue.Task) error {
	logger := logging.WithContext(ctx, t.logger)
	task.InitProgress("Transcribing", "Sending audio to the transcription service")
	logger.Debug("starting transcription preparation")
	return nil
}

func (t *Transcriber) Execute(ctx context.Context, task *queue.Task) error {
	logger := logging.WithContext(ctx, t.logger)
	if t.cfg == nil || t.client == nil {
		return services.Wrap(services.ErrConfiguration, "transcribe", "execute", "Transcribe stage is not configured", nil)
	}

	env, err := stage.ParseEnvelope(task.StageResults)
	if err != nil {
		return err
	}
	if env.Transcribe != nil {
		logger.Debug("transcription already recorded; skipping",
			logging.Int("segments", len(env.Transcribe.Segments)),
		)
		task.SetProgress("Transcribing", "Transcript already recorded", 100)
		return nil
	}
	if env.Decode == nil || strings.TrimSpace(env.Decode.AudioPath) == "" {
		return services.Wrap(services.ErrValidation, "transcribe", "locate audio",
			"No extracted audio recorded for this task", nil)
	}

	opts, err := stage.ParseOptions(task.OptionsJSON)
	if err != nil {
		return err
	}

	result, err := t.client.Transcribe(ctx, env.Decode.AudioPath, opts.LanguageHint)
	if err != nil {
		return err
	}

	lang := result.Language
	if lang == "" {
		lang = opts.LanguageHint
	}
	segments := make([]transcript.RawSegment, 0, len(result.Segments))
	for _, seg := range result.Segments {
		segments = append(segments, transcript.RawSegment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}

	env.Transcribe = &transcript.TranscribeResult{Language: lang, Segments: segments}
	if err := queue.PersistEnvelope(ctx, t.store, task, env); err != nil {
		return services.Wrap(services.ErrTransient, "transcribe", "persist results", "Failed to persist transcription results", err)
	}

	if len(segments) == 0 {
		task.SetProgress("Transcribing", "No speech detected", 100)
		logger.Info("transcription found no speech",
			logging.String("language", lang),
		)
		return nil
	}

	task.SetProgress("Transcribing", fmt.Sprintf("Transcribed %d segments", len(segments)), 100)
	logger.Info("transcription completed",
		logging.String("language", lang),
		logging.Int("segments", len(segments)),
	)
	return nil
}

// HealthCheck verifies the inference server is reachable.
func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	const name = "transcriber"
	if t.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if t.client == nil {
		return stage.Unhealthy(name, "transcription client unavailable")
	}
	if err := t.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}
