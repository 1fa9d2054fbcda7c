package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"murmur/internal/config"
	"murmur/internal/testsupport"
)

func swapStatfs(t *testing.T, fn func(string) (uint64, error)) {
	t.Helper()
	prev := statfs
	statfs = fn
	t.Cleanup(func() { statfs = prev })
}

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDiskSpace_OK(t *testing.T) {
	swapStatfs(t, func(string) (uint64, error) {
		return 10 << 30, nil
	})
	result := CheckDiskSpace("disk", t.TempDir(), MinScratchBytes)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "GiB free") {
		t.Fatalf("expected free-space detail, got: %s", result.Detail)
	}
}

func TestCheckDiskSpace_Low(t *testing.T) {
	swapStatfs(t, func(string) (uint64, error) {
		return 1 << 20, nil
	})
	result := CheckDiskSpace("disk", t.TempDir(), MinScratchBytes)
	if result.Passed {
		t.Fatal("expected failure below the free-space floor")
	}
	if !strings.Contains(result.Detail, "required") {
		t.Fatalf("expected requirement detail, got: %s", result.Detail)
	}
}

func TestCheckASR_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.ASR.BaseURL = srv.URL
	result := CheckASR(context.Background(), &cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckASR_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.ASR.BaseURL = srv.URL
	result := CheckASR(context.Background(), &cfg)
	if result.Passed {
		t.Fatal("expected failure for unhealthy service")
	}
}

func TestCheckASR_MissingURL(t *testing.T) {
	cfg := config.Default()
	cfg.ASR.BaseURL = ""
	result := CheckASR(context.Background(), &cfg)
	if result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestCheckDiarizer_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Diarization.BaseURL = srv.URL
	result := CheckDiarizer(context.Background(), &cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckLLM_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"message":       map[string]any{"content": `{"ok": true}`},
					"finish_reason": "stop",
				},
			},
		})
	}))
	defer srv.Close()

	result := CheckLLM(context.Background(), "LLM", config.LLMConfig{BaseURL: srv.URL, Model: "test"})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckLLM_MissingURL(t *testing.T) {
	result := CheckLLM(context.Background(), "LLM", config.LLMConfig{})
	if result.Passed {
		t.Fatal("expected failure for missing base URL")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_NoBlockingFailuresOnHealthyInstall(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	swapStatfs(t, func(string) (uint64, error) {
		return 10 << 30, nil
	})

	results := RunAll(context.Background(), cfg)
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if blocking := Blocking(results); len(blocking) != 0 {
		t.Fatalf("expected no blocking failures, got %+v", blocking)
	}
}

func TestRunAll_MissingBinariesBlock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	swapStatfs(t, func(string) (uint64, error) {
		return 10 << 30, nil
	})
	t.Setenv("PATH", t.TempDir())

	results := RunAll(context.Background(), cfg)
	blocking := Blocking(results)
	names := make([]string, 0, len(blocking))
	for _, result := range blocking {
		names = append(names, result.Name)
	}
	joined := strings.Join(names, ",")
	if !strings.Contains(joined, "FFmpeg") || !strings.Contains(joined, "FFprobe") {
		t.Fatalf("expected missing binaries to block, got %q", joined)
	}
}

func TestCheckDiarizerFromConfig_Disabled(t *testing.T) {
	cfg := config.Default()
	cfg.Diarization.Enabled = false
	result := CheckDiarizerFromConfig(&cfg)
	if !result.Passed || result.Detail != "Disabled" {
		t.Fatalf("expected passing disabled result, got %+v", result)
	}
}

func TestCheckLLMFromConfig_Disabled(t *testing.T) {
	cfg := config.Default()
	cfg.Refinement.Enabled = false
	result := CheckLLMFromConfig(&cfg)
	if !result.Passed || result.Detail != "Disabled" {
		t.Fatalf("expected passing disabled result, got %+v", result)
	}
}

func TestProbeWatchDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"one.mp4", "two.wav", "skip.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Ingest.WatchDir = dir
	probe := ProbeWatchDir(&cfg)
	if !probe.Configured {
		t.Fatal("expected configured probe")
	}
	if probe.PendingMedia != 2 {
		t.Fatalf("expected 2 pending media files, got %d", probe.PendingMedia)
	}
	if !strings.Contains(probe.WatchDetail(), "2 files awaiting ingest") {
		t.Fatalf("unexpected detail: %s", probe.WatchDetail())
	}
}

func TestProbeWatchDir_Unconfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Ingest.WatchDir = ""
	probe := ProbeWatchDir(&cfg)
	if probe.Configured {
		t.Fatal("expected unconfigured probe")
	}
	if probe.WatchDetail() != "Watch folder disabled" {
		t.Fatalf("unexpected detail: %s", probe.WatchDetail())
	}
}
