package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"murmur/internal/logging"
	"murmur/internal/notifications"
	"murmur/internal/queue"
	"murmur/internal/stage"
)

func (m *Manager) notifyStageError(ctx context.Context, stageName string, task *queue.Task, stageErr error) {
	if m.notifier == nil || stageErr == nil {
		return
	}
	logger := logging.WithContext(ctx, logging.NewComponentLogger(m.logger, "workflow-manager"))
	contextLabel := fmt.Sprintf("%s (task #%d)", stageName, task.ID)
	if err := m.notifier.Publish(ctx, notifications.EventError, notifications.Payload{
		"error":   stageErr,
		"context": contextLabel,
	}); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send error notification")
		} else {
			logger.Debug("stage error notification failed", logging.Error(err))
		}
	}
}

// onTaskStarted publishes the queue-started event the first time work begins
// after a quiet period. Subsequent stage transitions are no-ops until the
// queue drains and checkQueueCompletion resets the flag.
func (m *Manager) onTaskStarted(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not get queue stats for start notification")
		} else {
			m.logger.Warn("queue stats unavailable for start notification; notification skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_stats_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
				logging.String(logging.FieldImpact, "start notification will not be sent"),
			)
		}
		return
	}
	m.mu.Lock()
	if m.queueActive {
		m.mu.Unlock()
		return
	}
	m.queueActive = true
	m.queueStart = time.Now()
	m.mu.Unlock()

	count := countWorkTasks(stats)
	if err := m.notifier.Publish(ctx, notifications.EventQueueStarted, notifications.Payload{"count": count}); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send queue start notification")
		} else {
			m.logger.Debug("queue start notification failed", logging.Error(err))
		}
	}
}

func (m *Manager) notifyTaskFinished(ctx context.Context, task *queue.Task) {
	if m.notifier == nil {
		return
	}
	logger := logging.WithContext(ctx, logging.NewComponentLogger(m.logger, "workflow-manager"))

	title := strings.TrimSpace(task.Title)
	if title == "" {
		title = filepath.Base(task.SourcePath)
	}

	event := notifications.EventTaskCompleted
	payload := notifications.Payload{"title": title}
	if task.DiarizationDegraded || task.RefinementDegraded {
		event = notifications.EventTaskDegraded
		payload["detail"] = degradationDetail(task)
	} else if formats := encodedFormats(task); formats != "" {
		payload["formats"] = formats
	}

	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send completion notification")
		} else {
			logger.Debug("task completion notification failed", logging.Error(err))
		}
	}
}

func (m *Manager) checkQueueCompletion(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not check queue completion")
		} else {
			m.logger.Warn("queue stats unavailable for completion notification; notification skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_stats_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
				logging.String(logging.FieldImpact, "completion notification will not be sent"),
			)
		}
		return
	}
	if active := countActiveTasks(stats); active > 0 {
		return
	}

	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	start := m.queueStart
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()

	duration := time.Duration(0)
	if !start.IsZero() {
		duration = time.Since(start)
	}
	processed := stats[queue.StatusCompleted]
	failed := stats[queue.StatusFailed]
	if err := m.notifier.Publish(ctx, notifications.EventQueueCompleted, notifications.Payload{
		"processed": processed,
		"failed":    failed,
		"duration":  duration,
	}); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send queue completion notification")
		} else {
			m.logger.Debug("queue completion notification failed", logging.Error(err))
		}
	}
}

func degradationDetail(task *queue.Task) string {
	switch {
	case task.DiarizationDegraded && task.RefinementDegraded:
		return "speaker attribution and refinement unavailable"
	case task.DiarizationDegraded:
		return "speaker attribution unavailable"
	case task.RefinementDegraded:
		return "refinement unavailable"
	}
	return ""
}

// encodedFormats lists the formats that produced an artifact, for the
// completion notification. Parse failures yield an empty list rather than an
// error; the notification simply omits the detail.
func encodedFormats(task *queue.Task) string {
	env, err := stage.ParseEnvelope(task.StageResults)
	if err != nil || env.Encode == nil {
		return ""
	}
	succeeded := env.Encode.Succeeded()
	formats := make([]string, 0, len(succeeded))
	for _, artifact := range succeeded {
		formats = append(formats, artifact.Format)
	}
	return strings.Join(formats, ", ")
}

func countWorkTasks(stats map[queue.Status]int) int {
	total := 0
	for status, count := range stats {
		if queue.IsTerminalStatus(status) {
			continue
		}
		total += count
	}
	return total
}

func countActiveTasks(stats map[queue.Status]int) int {
	activeStatuses := []queue.Status{
		queue.StatusQueued,
		queue.StatusDecoding,
		queue.StatusTranscribing,
		queue.StatusAligning,
		queue.StatusDiarizing,
		queue.StatusRefining,
		queue.StatusEncoding,
	}
	total := 0
	for _, status := range activeStatuses {
		total += stats[status]
	}
	return total
}
