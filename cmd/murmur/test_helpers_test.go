package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"murmur/internal/config"
	"murmur/internal/daemon"
	"murmur/internal/logging"
	"murmur/internal/queue"
	"murmur/internal/stage"
	"murmur/internal/testsupport"
	"murmur/internal/transcript"
	"murmur/internal/workflow"
)

type noopStage struct{}

func (noopStage) Prepare(context.Context, *queue.Task) error { return nil }
func (noopStage) Execute(context.Context, *queue.Task) error { return nil }
func (noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("noop")
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	configPath string
	address    string
}

// setupCLIEnv prepares a config file and queue store without a running
// daemon. The address points at the discard port, where nothing listens in
// tests, so API probes fail fast with connection refused and queue commands
// exercise the direct store fallback.
func setupCLIEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(home, ".config", "murmur", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		configPath: configPath,
		address:    "127.0.0.1:9",
	}
}

// setupDaemonCLIEnv starts a real daemon with a noop pipeline and points the
// CLI at its bound API address.
func setupDaemonCLIEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	configPath := filepath.Join(home, ".config", "murmur", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	manager := workflow.NewManager(cfg, store, logger)
	manager.ConfigureStages(workflow.StageSet{Decoder: noopStage{}})

	d, err := daemon.New(cfg, store, logger, manager, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		configPath: configPath,
		address:    d.APIAddr(),
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--address", env.address, "--config", env.configPath}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
scratch_dir = %q
output_dir = %q
log_dir = %q

[api]
bind = %q
`,
		cfg.Paths.ScratchDir,
		cfg.Paths.OutputDir,
		cfg.Paths.LogDir,
		cfg.API.Bind,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// seedCompletedTask marks the task completed with a small two-speaker
// transcript so result rendering has real output to format.
func seedCompletedTask(t *testing.T, env *cliTestEnv, task *queue.Task) {
	t.Helper()
	envelope := transcript.Envelope{
		Decode:     &transcript.DecodeResult{AudioPath: "/scratch/talk.wav", Duration: 4},
		Transcribe: &transcript.TranscribeResult{Language: "en"},
		Final: []transcript.Segment{
			{ID: 1, Start: 0, End: 2.5, Text: "Hello there.", Speaker: "SPEAKER_00"},
			{ID: 2, Start: 2.5, End: 4, Text: "Hi.", Speaker: "SPEAKER_01"},
		},
	}
	raw, err := envelope.Marshal()
	if err != nil {
		t.Fatalf("encode envelope: %v", err)
	}
	task.Status = queue.StatusCompleted
	task.StageResults = raw
	if err := env.store.Update(context.Background(), task); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
