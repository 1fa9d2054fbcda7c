package preflight

import (
	"context"

	"murmur/internal/config"
)

// Result reports the outcome of a single preflight check. Advisory results
// never block daemon startup; they surface through status output instead.
type Result struct {
	Name     string
	Passed   bool
	Advisory bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks gated by a feature toggle run only when the feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	// Output storage may be network-mounted and temporarily absent; the
	// encode stage re-checks when it writes.
	output := CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir)
	output.Advisory = true
	results = append(results, output)

	if cfg.Ingest.WatchDir != "" {
		watch := CheckDirectoryAccess("Watch directory", cfg.Ingest.WatchDir)
		watch.Advisory = true
		results = append(results, watch)
	}

	disk := CheckDiskSpace("Scratch disk space", cfg.Paths.ScratchDir, MinScratchBytes)
	disk.Advisory = true
	results = append(results, disk)

	for _, status := range CheckSystemDeps(ctx, cfg) {
		results = append(results, Result{
			Name:     status.Name,
			Passed:   status.Available,
			Advisory: status.Optional,
			Detail:   statusDetail(status.Detail, status.Command),
		})
	}

	asr := CheckASR(ctx, cfg)
	asr.Advisory = true
	results = append(results, asr)

	if cfg.Diarization.Enabled {
		diar := CheckDiarizer(ctx, cfg)
		diar.Advisory = true
		results = append(results, diar)
	}

	if cfg.Refinement.Enabled {
		llmCheck := CheckLLM(ctx, "Refinement LLM", cfg.GetLLM())
		llmCheck.Advisory = true
		results = append(results, llmCheck)
	}

	return results
}

// Blocking returns the failed results that should prevent daemon startup.
func Blocking(results []Result) []Result {
	var blocking []Result
	for _, result := range results {
		if !result.Passed && !result.Advisory {
			blocking = append(blocking, result)
		}
	}
	return blocking
}

func statusDetail(detail, command string) string {
	if detail != "" {
		return detail
	}
	return command
}
