package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"murmur/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Workflow.Workers != 1 {
		t.Fatalf("expected default workers=1, got %d", cfg.Workflow.Workers)
	}
	if !cfg.Diarization.Enabled || !cfg.Refinement.Enabled {
		t.Fatal("expected diarization and refinement enabled by default")
	}
	if got := cfg.Output.Formats; len(got) != 2 || got[0] != "json" || got[1] != "srt" {
		t.Fatalf("unexpected default formats: %v", got)
	}
}

func TestLoadExpandsAndNormalizes(t *testing.T) {
	path := writeConfig(t, `
[paths]
scratch_dir = "~/murmur-scratch"

[asr]
base_url = "http://asr.local:9090/"
language = "English"

[refinement]
translate_to = "Chinese"

[output]
formats = ["SRT", "srt", "json"]
`)
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("home dir: %v", err)
	}
	if want := filepath.Join(home, "murmur-scratch"); cfg.Paths.ScratchDir != want {
		t.Fatalf("expected scratch dir %q, got %q", want, cfg.Paths.ScratchDir)
	}
	if cfg.ASR.BaseURL != "http://asr.local:9090" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.ASR.BaseURL)
	}
	if cfg.ASR.Language != "en" {
		t.Fatalf("expected language normalized to en, got %q", cfg.ASR.Language)
	}
	if cfg.Refinement.TranslateTo != "zh" {
		t.Fatalf("expected translate_to normalized to zh, got %q", cfg.Refinement.TranslateTo)
	}
	if got := cfg.Output.Formats; len(got) != 2 || got[0] != "srt" || got[1] != "json" {
		t.Fatalf("expected deduplicated formats, got %v", got)
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	path := writeConfig(t, `
[output]
formats = ["ass"]
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown format")
	} else if !strings.Contains(err.Error(), "output.formats") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsBadAnchorThreshold(t *testing.T) {
	path := writeConfig(t, `
[refinement]
anchor_threshold = 1.5
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for out-of-range anchor threshold")
	}
}

func TestLoadRejectsUnknownTranslateTarget(t *testing.T) {
	path := writeConfig(t, `
[refinement]
translate_to = "klingon"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown translate target")
	}
}

func TestLoadRejectsSpeakerBoundsInversion(t *testing.T) {
	path := writeConfig(t, `
[diarization]
min_speakers = 4
max_speakers = 2
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for min_speakers > max_speakers")
	}
}

func TestLoadRejectsHeartbeatInversion(t *testing.T) {
	path := writeConfig(t, `
[workflow]
heartbeat_interval = 60
heartbeat_timeout = 30
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for heartbeat timeout <= interval")
	}
}

func TestStageTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Workflow.TranscribeTimeout = 120
	if got := cfg.StageTimeout("transcribing"); got != 2*time.Minute {
		t.Fatalf("expected 2m transcribe timeout, got %s", got)
	}
	if got := cfg.StageTimeout("unknown"); got != 0 {
		t.Fatalf("expected zero timeout for unknown stage, got %s", got)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil {
		t.Fatalf("Load of sample returned error: %v", err)
	} else if !exists {
		t.Fatal("expected sample config to exist")
	}
}
