package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"murmur/internal/logging"
	"murmur/internal/queue"
	"murmur/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, task *queue.Task, stageErr error) {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(m.logger, "workflow-manager"))

	kind := services.Kind(stageErr)
	message := m.classifyStageFailure(stageName, stageErr)
	task.SetFailed(kind, message)

	logger.Error("stage failed",
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Alert("stage_failure"),
		logging.String(logging.FieldErrorKind, kind),
		logging.String("error_message", strings.TrimSpace(message)),
		logging.String("resolved_status", string(queue.StatusFailed)),
	)

	if err := m.store.Update(ctx, task); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastTask(task)
	m.notifyStageError(ctx, stageName, task, stageErr)
	m.checkQueueCompletion(ctx)
}

func (m *Manager) classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return m.stageFailureMessage(stageName, "failed without error detail")
	}
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = m.stageFailureMessage(stageName, "failed")
	}
	return message
}

func (m *Manager) stageFailureMessage(stageName, defaultMsg string) string {
	if stageName != "" {
		return fmt.Sprintf("%s %s", stageName, defaultMsg)
	}
	return fmt.Sprintf("workflow %s", defaultMsg)
}
