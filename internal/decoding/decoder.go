package decoding

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"log/slog"

	"murmur/internal/config"
	"murmur/internal/logging"
	"murmur/internal/media"
	"murmur/internal/media/ffprobe"
	"murmur/internal/queue"
	"murmur/internal/services"
	"murmur/internal/stage"
	"murmur/internal/transcript"
)

// audioFileName is the scratch artifact every downstream stage reads.
const audioFileName = "audio.wav"

type probeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Decoder manages source inspection and audio extraction.
type Decoder struct {
	store     *queue.Store
	cfg       *config.Config
	logger    *slog.Logger
	extractor *media.Extractor
	probe     probeFunc
}

// NewDecoder constructs the decode handler using default dependencies.
func NewDecoder(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Decoder {
	return NewDecoderWithDependencies(cfg, store, logger, media.NewExtractor(cfg.FFmpegBinary()), ffprobe.Inspect)
}

// NewDecoderWithDependencies allows injecting the extractor and prober (used in tests).
func NewDecoderWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, extractor *media.Extractor, probe probeFunc) *Decoder {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "decoder"))
	}
	return &Decoder{store: store, cfg: cfg, logger: stageLogger, extractor: extractor, probe: probe}
}

// SetLogger allows the workflow manager to route stage logs into the task-scoped log.
func (d *Decoder) SetLogger(logger *slog.Logger) {
	if d == nil {
		return
	}
	d.logger = logging.NewComponentLogger(logger, "decoder")
}

func (d *Decoder) Prepare(ctx context.Context, task *queue.Task) error {
	logger := logging.WithContext(ctx, d.logger)
	task.InitProgress("Decoding", "Probing source media")
	logger.Debug("starting decode preparation",
		logging.String("source_file", strings.TrimSpace(task.SourcePath)),
	)
	return nil
}

func (d *Decoder) Execute(ctx context.Context, task *queue.Task) error {
	logger := logging.WithContext(ctx, d.logger)
	if d.cfg == nil || d.extractor == nil || d.probe == nil {
		return services.Wrap(services.ErrConfiguration, "decode", "execute", "Decode stage is not configured", nil)
	}

	env, err := stage.ParseEnvelope(task.StageResults)
	if err != nil {
		return err
	}
	if env.Decode != nil && fileExists(env.Decode.AudioPath) {
		logger.Debug("audio already extracted; skipping decode",
			logging.String("audio_file", env.Decode.AudioPath),
		)
		task.SetProgress("Decoding", "Audio already extracted", 100)
		return nil
	}

	source := strings.TrimSpace(task.SourcePath)
	if source == "" {
		return services.Wrap(services.ErrValidation, "decode", "locate source", "Task has no source path", nil)
	}
	if _, err := os.Stat(source); err != nil {
		return services.Wrap(services.ErrValidation, "decode", "locate source",
			"Source file missing or unreadable; confirm it still exists", err)
	}

	probed, err := d.probe(ctx, d.cfg.FFprobeBinary(), source)
	if err != nil {
		return services.Wrap(services.ErrValidation, "decode", "probe source",
			"ffprobe could not read the source; confirm the file is valid media", err)
	}
	audioIndex := probed.FirstAudioIndex()
	if audioIndex < 0 {
		return services.Wrap(services.ErrValidation, "decode", "select audio stream",
			"Source contains no audio stream", nil)
	}
	duration := probed.DurationSeconds()

	taskDir := filepath.Join(d.cfg.Paths.ScratchDir, fmt.Sprintf("task-%d", task.ID))
	if err := os.MkdirAll(taskDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "decode", "ensure scratch dir",
			"Failed to create task scratch directory; set scratch_dir to a writable location", err)
	}

	if err := d.updateProgress(ctx, task, "Extracting audio", 50); err != nil {
		return err
	}

	audioPath := filepath.Join(taskDir, audioFileName)
	logger.Info("extracting audio",
		logging.String("source_file", source),
		logging.String("audio_file", audioPath),
		logging.Int("audio_stream", audioIndex),
		logging.Float64("duration_seconds", duration),
	)
	if err := d.extractor.ExtractWAV(ctx, source, audioIndex, audioPath); err != nil {
		return services.Wrap(services.ErrTransient, "decode", "extract audio",
			"ffmpeg failed to extract audio from the source", err)
	}

	env.Decode = &transcript.DecodeResult{
		AudioPath:  audioPath,
		Duration:   duration,
		SampleRate: 16000,
		Channels:   1,
	}
	if err := queue.PersistEnvelope(ctx, d.store, task, env); err != nil {
		return services.Wrap(services.ErrTransient, "decode", "persist results", "Failed to persist decode results", err)
	}

	task.SetProgress("Decoding", "Audio ready for transcription", 100)
	logger.Info("decode completed",
		logging.String("audio_file", audioPath),
		logging.Float64("duration_seconds", duration),
	)
	return nil
}

// HealthCheck verifies the local media tooling the decode stage shells out to.
func (d *Decoder) HealthCheck(ctx context.Context) stage.Health {
	const name = "decoder"
	if d.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Paths.ScratchDir) == "" {
		return stage.Unhealthy(name, "scratch directory not configured")
	}
	if d.extractor == nil {
		return stage.Unhealthy(name, "audio extractor unavailable")
	}
	if _, err := exec.LookPath(d.cfg.FFmpegBinary()); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("ffmpeg binary %q not found", d.cfg.FFmpegBinary()))
	}
	if _, err := exec.LookPath(d.cfg.FFprobeBinary()); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("ffprobe binary %q not found", d.cfg.FFprobeBinary()))
	}
	return stage.Healthy(name)
}

func (d *Decoder) updateProgress(ctx context.Context, task *queue.Task, message string, percent float64) error {
	task.ProgressMessage = message
	task.ProgressPercent = percent
	if err := d.store.UpdateProgress(ctx, task); err != nil {
		return services.Wrap(services.ErrTransient, "decode", "persist progress", "Failed to persist decode progress", err)
	}
	return nil
}

func fileExists(path string) bool {
	path = strings.TrimSpace(path)
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
