package subtitles

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"murmur/internal/config"
	"murmur/internal/logging"
	"murmur/internal/queue"
	"murmur/internal/services"
	"murmur/internal/stage"
	"murmur/internal/transcript"
)

// Stage writes one subtitle artifact per requested format into the output
// directory. Formats succeed and fail independently; the stage fails only
// when no format produced a file.
type Stage struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
}

// NewStage creates the encoding stage handler.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Stage {
	return &Stage{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "encode-stage"),
	}
}

func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "encode-stage")
}

// Prepare initializes progress tracking for encoding.
func (s *Stage) Prepare(ctx context.Context, task *queue.Task) error {
	logger := logging.WithContext(ctx, s.logger)
	task.InitProgress("Encoding", "Rendering subtitle artifacts")
	logger.Debug("encode stage prepared")
	return nil
}

// Execute renders the final segment sequence into every requested format and
// records the per-format outcomes on the envelope.
func (s *Stage) Execute(ctx context.Context, task *queue.Task) error {
	logger := logging.WithContext(ctx, s.logger)
	if s.cfg == nil {
		return services.Wrap(services.ErrConfiguration, "encode", "execute", "Encode stage is not configured", nil)
	}

	env, err := stage.ParseEnvelope(task.StageResults)
	if err != nil {
		return err
	}
	if env.Encode != nil {
		logger.Debug("artifacts already recorded; skipping")
		task.SetProgress("Encoding", "Artifacts already written", 100)
		return nil
	}

	opts, err := stage.ParseOptions(task.OptionsJSON)
	if err != nil {
		return err
	}
	formats := queue.NormalizeFormats(opts.Formats)
	if len(formats) == 0 {
		return services.Wrap(services.ErrValidation, "encode", "resolve formats", "No output formats requested", nil)
	}

	var final []transcript.Segment
	switch {
	case env.Refine != nil:
		final = env.Refine.Segments
	case env.Diarize != nil:
		final = env.Diarize.Segments
	case env.Align != nil:
		final = env.Align.Segments
	default:
		return services.Wrap(services.ErrValidation, "encode", "locate transcript",
			"No aligned transcript recorded for this task", nil)
	}

	outDir := strings.TrimSpace(s.cfg.Paths.OutputDir)
	if outDir == "" {
		return services.Wrap(services.ErrConfiguration, "encode", "resolve output", "Output directory is not configured", nil)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "encode", "create output",
			"Could not create the output directory", err)
	}

	doc := Document{
		Title:    strings.TrimSpace(task.Title),
		Speakers: transcript.Speakers(final),
		Segments: final,
	}
	if env.Transcribe != nil {
		doc.Language = env.Transcribe.Language
	}
	if env.Decode != nil {
		doc.Duration = env.Decode.Duration
	}
	encOpts := Options{SpeakerPrefix: opts.SpeakerPrefix, IncludeWords: opts.IncludeWords}

	stem := artifactStem(task)
	artifacts := make([]transcript.Artifact, 0, len(formats))
	for _, format := range formats {
		artifact := transcript.Artifact{Format: format}
		data, err := Render(format, doc, encOpts)
		if err == nil {
			path := filepath.Join(outDir, stem+"."+format)
			if err = os.WriteFile(path, data, 0o644); err == nil {
				artifact.Path = path
			}
		}
		if err != nil {
			artifact.Error = err.Error()
			logger.Warn("artifact encoding failed; other formats continue",
				logging.String("format", format),
				logging.Error(err),
				logging.String(logging.FieldEventType, "artifact_encode_failed"),
				logging.String(logging.FieldErrorHint, "check output_dir permissions and free space"),
				logging.String(logging.FieldImpact, "requested format missing from output"),
			)
		}
		artifacts = append(artifacts, artifact)
	}

	result := transcript.EncodeResult{Artifacts: artifacts}
	succeeded := result.Succeeded()
	if len(succeeded) == 0 {
		return services.Wrap(services.ErrTransient, "encode", "write artifacts",
			"Every requested format failed to encode", nil)
	}

	env.Encode = &result
	env.Final = transcript.CloneSegments(final)
	if err := queue.PersistEnvelope(ctx, s.store, task, env); err != nil {
		return services.Wrap(services.ErrTransient, "encode", "persist results", "Failed to persist encoding results", err)
	}

	task.SetProgress("Encoding", fmt.Sprintf("Wrote %d of %d artifacts", len(succeeded), len(formats)), 100)
	logger.Info("encoding completed",
		logging.Int("artifacts", len(succeeded)),
		logging.Int("requested", len(formats)),
		logging.Int("segments", len(final)),
		logging.String("output_dir", outDir),
	)
	return nil
}

// HealthCheck verifies the output directory is configured.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	const name = "encoder"
	if s.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(s.cfg.Paths.OutputDir) == "" {
		return stage.Unhealthy(name, "output directory not configured")
	}
	if len(queue.NormalizeFormats(s.cfg.Output.Formats)) == 0 {
		return stage.Unhealthy(name, "no output formats configured")
	}
	return stage.Healthy(name)
}

// artifactStem derives output filenames from the source media name, falling
// back to the task ID for unusable names.
func artifactStem(task *queue.Task) string {
	base := filepath.Base(strings.TrimSpace(task.SourcePath))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.Trim(stem, ". ")
	if stem == "" || stem == string(filepath.Separator) {
		return fmt.Sprintf("task-%d", task.ID)
	}
	return stem
}
