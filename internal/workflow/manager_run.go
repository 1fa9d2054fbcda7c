package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"murmur/internal/logging"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}
	workers := m.cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(workers + 1)
	m.mu.Unlock()

	go m.runReclaimer(runCtx)
	for worker := 1; worker <= workers; worker++ {
		go m.runWorker(runCtx, worker)
	}
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runWorker(ctx context.Context, worker int) {
	defer m.wg.Done()
	logger := m.workerLogger(worker)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := m.store.ClaimNext(ctx)
		if err != nil {
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if task == nil {
			m.waitForTaskOrShutdown(ctx)
			continue
		}

		if err := m.processTask(ctx, worker, logger, task); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// runReclaimer periodically requeues tasks whose worker stopped heartbeating
// and finalizes cancel requests those tasks carried. It runs once at startup
// and then on every heartbeat interval.
func (m *Manager) runReclaimer(ctx context.Context) {
	defer m.wg.Done()
	logger := logging.NewComponentLogger(m.logger, "workflow-reclaimer")

	interval := time.Duration(m.cfg.Workflow.HeartbeatInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := m.heartbeat.ReclaimStale(ctx, logger); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Warn("reclaim stale processing failed; stuck tasks may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		if swept, err := m.store.SweepCancellations(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Warn("cancel sweep failed; cancelled tasks may linger as queued",
				logging.Error(err),
				logging.String(logging.FieldEventType, "cancel_sweep_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		} else if swept > 0 {
			logger.Info("finalized orphaned cancel requests",
				logging.Int64("count", swept),
				logging.String(logging.FieldEventType, "tasks_cancel_swept"),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.setLastError(err)
	logger.Error("failed to claim next queue task",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_claim_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForTaskOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
