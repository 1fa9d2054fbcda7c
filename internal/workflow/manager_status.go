package workflow

import (
	"context"

	"murmur/internal/logging"
	"murmur/internal/queue"
	"murmur/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	Workers     int
	LastError   string
	LastTask    *queue.Task
	QueueStats  map[queue.Status]int
	StageHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastTask := m.lastTask
	stages := m.stages
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		health[stg.name] = stg.handler.HealthCheck(ctx)
	}

	workers := m.cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}

	summary := StatusSummary{Running: running, Workers: workers, QueueStats: stats, StageHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastTask != nil {
		copy := *lastTask
		summary.LastTask = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastTask(task *queue.Task) {
	m.mu.Lock()
	if task != nil {
		copy := *task
		m.lastTask = &copy
	} else {
		m.lastTask = nil
	}
	m.mu.Unlock()
}
