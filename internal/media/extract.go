package media

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Extractor turns a media container into the audio file the inference server
// consumes.
type Extractor struct {
	ffmpegBinary  string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewExtractor builds an extractor around the given ffmpeg binary. An empty
// binary falls back to the one on PATH.
func NewExtractor(ffmpegBinary string) *Extractor {
	ffmpegBinary = strings.TrimSpace(ffmpegBinary)
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	return &Extractor{ffmpegBinary: ffmpegBinary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Extractor) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	e.commandRunner = runner
}

// ExtractWAV writes the selected audio stream as mono 16kHz signed 16-bit
// PCM, the input format the inference models are trained on.
func (e *Extractor) ExtractWAV(ctx context.Context, source string, audioIndex int, dest string) error {
	if audioIndex < 0 {
		return fmt.Errorf("extract audio: invalid audio stream index %d", audioIndex)
	}
	source = strings.TrimSpace(source)
	dest = strings.TrimSpace(dest)
	if source == "" || dest == "" {
		return fmt.Errorf("extract audio: source and destination required")
	}
	return e.run(ctx, e.ffmpegBinary, buildExtractArgs(source, audioIndex, dest)...)
}

func buildExtractArgs(source string, audioIndex int, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", fmt.Sprintf("0:%d", audioIndex),
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}

func (e *Extractor) run(ctx context.Context, name string, args ...string) error {
	if e.commandRunner != nil {
		return e.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
