package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"murmur/internal/logging"
	"murmur/internal/queue"
	"murmur/internal/services"
	"murmur/internal/stage"
)

// processTask walks one claimed task through every configured stage. Stage
// handlers skip work their envelope already records, so a resumed task pays
// only for the stages it has not finished.
func (m *Manager) processTask(ctx context.Context, worker int, workerLogger *slog.Logger, task *queue.Task) error {
	stages := m.configuredStages()

	for _, stg := range stages {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		cancelled := m.cancelIfRequested(ctx, workerLogger, task)
		if cancelled {
			return nil
		}

		requestID := uuid.NewString()
		stageCtx := withStageContext(ctx, stg.name, worker, task, requestID)
		stageLogger := m.stageLogger(stageCtx, workerLogger)
		if aware, ok := stg.handler.(stage.LoggerAware); ok {
			aware.SetLogger(stageLogger)
		}

		if err := m.transitionToProcessing(stageCtx, stg.status, task); err != nil {
			stageLogger.Error("failed to transition task to processing", logging.Error(err))
			m.setLastError(err)
			return err
		}

		if err := m.executeStage(stageCtx, stageLogger, stg, task); err != nil {
			return err
		}
	}

	return m.completeTask(ctx, workerLogger, task)
}

// cancelIfRequested honors a pending cancellation at a stage boundary. The
// queue store only flags in-flight tasks; the worker is the one that moves
// them to the terminal status. A failed status read is logged and processing
// continues, so a flaky database cannot stall the pipeline.
func (m *Manager) cancelIfRequested(ctx context.Context, logger *slog.Logger, task *queue.Task) bool {
	current, err := m.store.GetByID(ctx, task.ID)
	if err != nil {
		logger.Warn("could not check for cancellation request",
			logging.Error(err),
			logging.Int64(logging.FieldTaskID, task.ID),
			logging.String(logging.FieldEventType, "cancel_check_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return false
	}
	if current == nil || !current.CancelRequested {
		return false
	}

	*task = *current
	task.Status = queue.StatusCancelled
	task.SetProgress("Cancelled", "", 0)
	task.LastHeartbeat = nil
	if err := m.store.Update(ctx, task); err != nil {
		logger.Error("failed to persist cancellation", logging.Error(err))
		m.setLastError(err)
		return false
	}

	logger.Info("task cancelled at stage boundary",
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldEventType, "task_cancelled"),
	)
	m.setLastTask(task)
	m.checkQueueCompletion(ctx)
	return true
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, task *queue.Task) error {
	stageStart := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("source_file", strings.TrimSpace(task.SourcePath)),
		logging.String("task_title", strings.TrimSpace(task.Title)),
	)

	if err := stg.handler.Prepare(ctx, task); err != nil {
		m.handleStageFailure(ctx, stg.name, task, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(ctx, task); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithHeartbeat(ctx, stg, task)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) && ctx.Err() != nil {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, stg.name, task, execErr)
		m.setLastError(execErr)
		return execErr
	}

	task.LastHeartbeat = nil
	if err := m.store.Update(ctx, task); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("progress_stage", strings.TrimSpace(task.ProgressStage)),
		logging.String("progress_message", strings.TrimSpace(task.ProgressMessage)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastTask(task)
	return nil
}

// executeWithHeartbeat runs the handler under the stage's configured timeout
// while a companion goroutine keeps the task heartbeat fresh. The heartbeat
// uses the parent context so it outlives a stage timeout but not a shutdown.
func (m *Manager) executeWithHeartbeat(ctx context.Context, stg pipelineStage, task *queue.Task) error {
	timeout := m.cfg.StageTimeout(string(stg.status))
	execCtx := ctx
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		execCtx, cancelTimeout = context.WithTimeout(ctx, timeout)
		defer cancelTimeout()
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, task.ID)

	execErr := stg.handler.Execute(execCtx, task)
	hbCancel()
	hbWG.Wait()

	if execErr != nil && errors.Is(execErr, context.DeadlineExceeded) && ctx.Err() == nil {
		return services.Wrap(
			services.ErrTimeout,
			stg.name,
			"execute",
			fmt.Sprintf("Stage exceeded its %s timeout", timeout),
			execErr,
		)
	}
	return execErr
}

func (m *Manager) transitionToProcessing(ctx context.Context, processing queue.Status, task *queue.Task) error {
	if processing == "" {
		return errors.New("processing status must not be empty")
	}

	m.setTaskProcessingState(task, processing)
	if err := m.store.Update(ctx, task); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastTask(task)
	m.onTaskStarted(ctx)
	return nil
}

func (m *Manager) setTaskProcessingState(task *queue.Task, processing queue.Status) {
	now := time.Now().UTC()
	label := deriveStageLabel(processing)
	task.Status = processing
	task.SetProgress(label, fmt.Sprintf("%s started", label), 0)
	task.ErrorKind = ""
	task.ErrorMessage = ""
	task.LastHeartbeat = &now
}

func (m *Manager) completeTask(ctx context.Context, logger *slog.Logger, task *queue.Task) error {
	task.Status = queue.StatusCompleted
	task.LastHeartbeat = nil
	task.ProgressStage = deriveStageLabel(queue.StatusCompleted)
	if task.ProgressPercent < 100 {
		task.ProgressPercent = 100
	}
	if strings.TrimSpace(task.ProgressMessage) == "" {
		task.ProgressMessage = deriveStageLabel(queue.StatusCompleted)
	}
	if err := m.store.Update(ctx, task); err != nil {
		wrapped := fmt.Errorf("persist task completion: %w", err)
		logger.Error("failed to persist task completion", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	logger.Info("task completed",
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldEventType, "task_complete"),
		logging.String("task_title", strings.TrimSpace(task.Title)),
		logging.Bool("diarization_degraded", task.DiarizationDegraded),
		logging.Bool("refinement_degraded", task.RefinementDegraded),
	)
	m.setLastTask(task)
	m.notifyTaskFinished(ctx, task)
	m.checkQueueCompletion(ctx)
	return nil
}
