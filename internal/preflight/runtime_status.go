package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"murmur/internal/config"
	"murmur/internal/media"
)

// CheckASRFromConfig evaluates ASR status from config and connectivity.
func CheckASRFromConfig(cfg *config.Config) Result {
	const name = "ASR service"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.ASR.BaseURL) == "" {
		return Result{Name: name, Detail: "Missing base URL"}
	}
	return CheckASR(context.Background(), cfg)
}

// CheckDiarizerFromConfig evaluates diarization status from config and
// connectivity.
func CheckDiarizerFromConfig(cfg *config.Config) Result {
	const name = "Diarization service"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Diarization.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if strings.TrimSpace(cfg.Diarization.BaseURL) == "" {
		return Result{Name: name, Detail: "Missing base URL"}
	}
	return CheckDiarizer(context.Background(), cfg)
}

// CheckLLMFromConfig evaluates refinement LLM status from config and
// connectivity.
func CheckLLMFromConfig(cfg *config.Config) Result {
	const name = "Refinement LLM"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Refinement.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	llmCfg := cfg.GetLLM()
	if llmCfg.BaseURL == "" {
		return Result{Name: name, Detail: "Missing base URL"}
	}
	return CheckLLM(context.Background(), name, llmCfg)
}

// WatchDirProbe reports the current watch-folder ingest snapshot.
type WatchDirProbe struct {
	Configured   bool
	Path         string
	PendingMedia int
}

// ProbeWatchDir counts supported media files currently sitting in the watch
// directory.
func ProbeWatchDir(cfg *config.Config) WatchDirProbe {
	if cfg == nil {
		return WatchDirProbe{}
	}
	dir := strings.TrimSpace(cfg.Ingest.WatchDir)
	if dir == "" {
		return WatchDirProbe{}
	}
	probe := WatchDirProbe{Configured: true, Path: dir}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return probe
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if media.SupportedExtension(filepath.Join(dir, entry.Name())) {
			probe.PendingMedia++
		}
	}
	return probe
}

// WatchDetail renders a display-friendly summary for status UIs.
func (p WatchDirProbe) WatchDetail() string {
	if !p.Configured {
		return "Watch folder disabled"
	}
	switch p.PendingMedia {
	case 0:
		return fmt.Sprintf("Watching %s", p.Path)
	case 1:
		return fmt.Sprintf("Watching %s (1 file awaiting ingest)", p.Path)
	default:
		return fmt.Sprintf("Watching %s (%d files awaiting ingest)", p.Path, p.PendingMedia)
	}
}
