package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ClaimNext atomically hands the oldest claimable queued task to a worker.
// The claim moves the task into the decoding stage and stamps its heartbeat
// in a single statement, so two workers can never adopt the same task. Tasks
// with a pending cancellation are left for the cancel sweep. Returns nil when
// nothing is claimable.
func (s *Store) ClaimNext(ctx context.Context) (*Task, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var task *Task
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(
			ctx,
			`UPDATE tasks
             SET status = ?, last_heartbeat = ?, updated_at = ?
             WHERE id = (
                 SELECT id FROM tasks
                 WHERE status = ? AND cancel_requested = 0
                 ORDER BY created_at, id
                 LIMIT 1
             )
             RETURNING `+taskColumns,
			StatusDecoding,
			now,
			now,
			StatusQueued,
		)
		scanned, scanErr := scanTask(row)
		if scanErr != nil {
			return scanErr
		}
		task = scanned
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next task: %w", err)
	}
	return task, nil
}

// RequestCancel marks a task for cancellation. A queued task cancels
// immediately; an in-flight task keeps running until its next stage boundary,
// where the worker honors the flag. Terminal tasks are returned unchanged.
// Returns nil when no task exists with the given identifier.
func (s *Store) RequestCancel(ctx context.Context, id int64) (*Task, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, cancel_requested = 1, progress_stage = 'Cancelled',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCancelled,
		now,
		id,
		StatusQueued,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel queued task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		if err := s.execWithoutResultRetry(
			ctx,
			`UPDATE tasks SET cancel_requested = 1, updated_at = ?
             WHERE id = ? AND status IN (?, ?, ?, ?, ?, ?)`,
			now,
			id,
			StatusDecoding,
			StatusTranscribing,
			StatusAligning,
			StatusDiarizing,
			StatusRefining,
			StatusEncoding,
		); err != nil {
			return nil, fmt.Errorf("request cancel: %w", err)
		}
	}

	return s.GetByID(ctx, id)
}

// SweepCancellations finalizes cancel requests that no worker will honor.
// A queued task carrying the flag was reclaimed or reset after the request
// arrived; ClaimNext refuses it, so the sweep moves it straight to cancelled.
func (s *Store) SweepCancellations(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, progress_stage = 'Cancelled', progress_percent = 0,
             progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND cancel_requested = 1`,
		StatusCancelled,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusQueued,
	)
	if err != nil {
		return 0, fmt.Errorf("sweep cancellations: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight task.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale requeues in-flight tasks whose worker stopped heartbeating
// before the cutoff. Stage results stay with the task, so the next worker
// resumes from the last persisted stage instead of starting over.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
        SET status = ?, progress_stage = 'Reclaimed from stale worker',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (?, ?, ?, ?, ?, ?) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusQueued,
		now.Format(time.RFC3339Nano),
		StatusDecoding,
		StatusTranscribing,
		StatusAligning,
		StatusDiarizing,
		StatusRefining,
		StatusEncoding,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale tasks: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckProcessing requeues every in-flight task regardless of heartbeat
// age. Called once at daemon startup, before any worker runs, to recover
// tasks orphaned by an unclean shutdown.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, progress_stage = 'Reset after restart',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?, ?, ?, ?)`,
		StatusQueued,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusDecoding,
		StatusTranscribing,
		StatusAligning,
		StatusDiarizing,
		StatusRefining,
		StatusEncoding,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck tasks: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed tasks back to queued for reprocessing. Stage
// results are preserved so completed stages are not re-run; the recorded
// error and any stale cancellation request are cleared.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE tasks
            SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
                progress_message = NULL, error_kind = NULL, error_message = NULL,
                cancel_requested = 0, updated_at = ?
            WHERE status = ?`,
			StatusQueued,
			now,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed tasks: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusQueued, now)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE tasks
        SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_kind = NULL, error_message = NULL,
            cancel_requested = 0, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected tasks: %w", err)
	}
	return res.RowsAffected()
}
