package daemon

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"murmur/internal/api"
	"murmur/internal/ingest"
	"murmur/internal/logging"
	"murmur/internal/stage"
	"murmur/internal/testsupport"
	"murmur/internal/workflow"
)

func TestNewValidatesComponents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	manager := workflow.NewManager(cfg, store, logger)

	if _, err := New(nil, store, logger, manager, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := New(cfg, nil, logger, manager, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := New(cfg, store, logger, nil, nil); err == nil {
		t.Fatal("expected error for nil workflow manager")
	}
	if _, err := New(cfg, store, nil, manager, nil); err != nil {
		t.Fatalf("nil logger should default to noop: %v", err)
	}
}

func TestNewWithoutBindDisablesAPI(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = "  "
	store := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, store, logging.NewNop())

	d, err := New(cfg, store, logging.NewNop(), manager, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.api != nil {
		t.Fatal("expected api server to be disabled")
	}
	if addr := d.APIAddr(); addr != "" {
		t.Fatalf("expected empty api address, got %q", addr)
	}
}

func TestDaemonStatusBeforeStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, store, logging.NewNop())
	d, err := New(cfg, store, logging.NewNop(), manager, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	status := d.Status(context.Background())
	if status.Running {
		t.Fatal("daemon should not report running before Start")
	}
	if status.PID <= 0 {
		t.Fatalf("unexpected pid: %d", status.PID)
	}
	if status.QueueDBPath != filepath.Join(cfg.Paths.LogDir, "queue.db") {
		t.Fatalf("unexpected queue db path: %q", status.QueueDBPath)
	}
	if status.LockFilePath != filepath.Join(cfg.Paths.LogDir, "murmurd.lock") {
		t.Fatalf("unexpected lock path: %q", status.LockFilePath)
	}
	if len(status.Dependencies) == 0 {
		t.Fatal("expected dependency statuses")
	}
}

func TestDaemonStartRefusesOnBlockingPreflight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, store, logging.NewNop())
	manager.ConfigureStages(workflow.StageSet{Decoder: stubStage{health: stage.Healthy("decoder")}})
	d, err := New(cfg, store, logging.NewNop(), manager, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// An empty PATH guarantees the ffmpeg and ffprobe checks fail.
	t.Setenv("PATH", t.TempDir())

	err = d.Start(context.Background())
	if err == nil {
		d.Stop()
		t.Fatal("expected start to fail preflight")
	}
	if !strings.Contains(err.Error(), "preflight failed") {
		t.Fatalf("unexpected error: %v", err)
	}

	// The lock must be released so a corrected configuration can start.
	ok, lockErr := d.lock.TryLock()
	if lockErr != nil || !ok {
		t.Fatalf("lock was not released: ok=%v err=%v", ok, lockErr)
	}
	_ = d.lock.Unlock()
}

func TestDaemonLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	manager := workflow.NewManager(cfg, store, logger)
	manager.ConfigureStages(workflow.StageSet{Decoder: stubStage{health: stage.Healthy("decoder")}})
	watcher := ingest.NewWatcher(cfg, store, logger, nil)

	d, err := New(cfg, store, logger, manager, watcher)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	if !d.running.Load() {
		t.Fatal("daemon should report running")
	}
	addr := d.APIAddr()
	if addr == "" || strings.HasSuffix(addr, ":0") {
		t.Fatalf("expected bound api address, got %q", addr)
	}

	client := api.NewClient(addr, "")
	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("status over http: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running status over http")
	}
	if status.Workflow.Workers < 1 {
		t.Fatalf("unexpected worker count: %d", status.Workflow.Workers)
	}

	second, err := New(cfg, store, logger, workflow.NewManager(cfg, store, logger), nil)
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be rejected by the lock")
	}

	d.Stop()
	if d.running.Load() {
		t.Fatal("daemon should not report running after Stop")
	}
}
