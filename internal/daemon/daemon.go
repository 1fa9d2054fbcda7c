package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"murmur/internal/config"
	"murmur/internal/deps"
	"murmur/internal/ingest"
	"murmur/internal/logging"
	"murmur/internal/preflight"
	"murmur/internal/queue"
	"murmur/internal/workflow"
)

const lockFileName = "murmurd.lock"

// Daemon owns the long-lived components of a murmurd process and coordinates
// their startup and shutdown.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	watcher  *ingest.Watcher
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status is a point-in-time view of the daemon.
type Status struct {
	Running      bool
	PID          int
	QueueDBPath  string
	LockFilePath string
	Workflow     workflow.StatusSummary
	Dependencies []deps.Status
}

// New wires a daemon from its components. The watcher may be nil when no
// watch folder is configured.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, manager *workflow.Manager, watcher *ingest.Watcher) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if store == nil {
		return nil, errors.New("queue store is required")
	}
	if manager == nil {
		return nil, errors.New("workflow manager is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: manager,
		watcher:  watcher,
		lockPath: filepath.Join(cfg.Paths.LogDir, lockFileName),
	}
	d.lock = flock.New(d.lockPath)

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the singleton lock, runs the preflight checks, recovers
// tasks interrupted by a previous shutdown, and brings up the workflow
// manager, ingest watcher, and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another murmur daemon instance is already running")
	}

	results := preflight.RunAll(ctx, d.cfg)
	d.logPreflight(results)
	if blocking := preflight.Blocking(results); len(blocking) > 0 {
		_ = d.lock.Unlock()
		names := make([]string, 0, len(blocking))
		for _, result := range blocking {
			names = append(names, result.Name)
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(names, ", "))
	}

	if reset, err := d.store.ResetStuckProcessing(ctx); err != nil {
		d.logger.Warn("failed to reset interrupted tasks", logging.Error(err))
	} else if reset > 0 {
		d.logger.Info("re-queued interrupted tasks", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	if d.watcher != nil {
		// Ingest failures are not fatal: submission over the API still works.
		if err := d.watcher.Start(runCtx); err != nil {
			d.logger.Warn("watch folder ingest disabled", logging.Error(err))
		}
	}

	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			if d.watcher != nil {
				d.watcher.Stop()
			}
			d.workflow.Stop()
			cancel()
			d.cancel = nil
			_ = d.lock.Unlock()
			return fmt.Errorf("start api server: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("murmur daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts components down in reverse startup order and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("murmur daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  filepath.Join(d.cfg.Paths.LogDir, "queue.db"),
		LockFilePath: d.lockPath,
		Workflow:     d.workflow.Status(ctx),
		Dependencies: preflight.CheckSystemDeps(ctx, d.cfg),
	}
}

// APIAddr reports the bound API listener address, or empty when the API
// server is disabled or not yet started.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

func (d *Daemon) logPreflight(results []preflight.Result) {
	for _, result := range results {
		attrs := []logging.Attr{
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		}
		switch {
		case result.Passed:
			d.logger.Debug("preflight check passed", logging.Args(attrs...)...)
		case result.Advisory:
			d.logger.Warn("preflight check degraded", logging.Args(attrs...)...)
		default:
			d.logger.Error("preflight check failed", logging.Args(attrs...)...)
		}
	}
}
