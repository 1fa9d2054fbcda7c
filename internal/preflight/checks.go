package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"murmur/internal/config"
	"murmur/internal/deps"
	"murmur/internal/services/asr"
	"murmur/internal/services/diarizer"
	"murmur/internal/services/llm"
)

// MinScratchBytes is the free-space floor for the scratch filesystem. A
// two-hour source decodes to roughly a quarter GiB of mono 16 kHz WAV, so one
// GiB leaves room for several concurrent tasks.
const MinScratchBytes = 1 << 30

// collaboratorTimeout bounds each collaborator health probe.
const collaboratorTimeout = 10 * time.Second

// statfs is swappable in tests.
var statfs = func(path string) (free uint64, err error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace verifies the filesystem holding path has at least minBytes
// available.
func CheckDiskSpace(name, path string, minBytes uint64) Result {
	free, err := statfs(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%.1f GiB free, %.1f GiB required)",
			path, gib(free), gib(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%.1f GiB free)", path, gib(free))}
}

// CheckASR verifies the transcription inference server is reachable.
func CheckASR(ctx context.Context, cfg *config.Config) Result {
	const name = "ASR service"
	base := strings.TrimSpace(cfg.ASR.BaseURL)
	if base == "" {
		return Result{Name: name, Detail: "missing base url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
	defer cancel()

	client := asr.NewClient(asr.Config{BaseURL: base, Model: cfg.ASR.Model})
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeHealthError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckDiarizer verifies the diarization inference server is reachable.
func CheckDiarizer(ctx context.Context, cfg *config.Config) Result {
	const name = "Diarization service"
	base := strings.TrimSpace(cfg.Diarization.BaseURL)
	if base == "" {
		return Result{Name: name, Detail: "missing base url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
	defer cancel()

	client := diarizer.NewClient(diarizer.Config{BaseURL: base})
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeHealthError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckLLM verifies that the LLM endpoint is reachable and the key, when one
// is configured, is valid. Single attempt, no retries.
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return Result{Name: name, Detail: "missing base url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeHealthError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckSystemDeps evaluates the external binaries the pipeline shells out to.
// Both the daemon and the CLI status command use this so the requirements
// list lives in one place.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for audio extraction",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for media inspection",
		},
	}
	return deps.CheckBinaries(requirements)
}

// summarizeHealthError produces a human-readable summary for collaborator
// health check failures.
func summarizeHealthError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (service unreachable)"
	}
	return err.Error()
}

func gib(bytes uint64) float64 {
	return float64(bytes) / (1 << 30)
}
