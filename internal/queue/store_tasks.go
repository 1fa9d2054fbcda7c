package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"murmur/internal/media"
)

// NewTask enqueues a source file for transcription with the given options
// snapshot. An empty title is derived from the source file name. The snapshot
// is validated here so a bad submission never reaches a worker.
func (s *Store) NewTask(ctx context.Context, sourcePath, title string, opts Options) (*Task, error) {
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return nil, errors.New("source path is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	optionsJSON, err := opts.Encode()
	if err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = media.DeriveTitle(sourcePath)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO tasks (
            status, source_path, title, options_json, created_at, updated_at,
            progress_stage, progress_percent, progress_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		StatusQueued,
		sourcePath,
		title,
		optionsJSON,
		timestamp,
		timestamp,
		nil,
		0.0,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a task by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// Update persists changes to an existing task. The cancel_requested flag is
// deliberately not written here: it belongs to the cancellation transitions
// (RequestCancel, RetryFailed, SweepCancellations), so a worker persisting a
// stale in-memory task cannot erase a cancel request that landed mid-stage.
func (s *Store) Update(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	task.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, source_path = ?, title = ?, options_json = ?,
             stage_results = ?, error_kind = ?, error_message = ?, updated_at = ?,
             progress_stage = ?, progress_percent = ?, progress_message = ?,
             diarization_degraded = ?, refinement_degraded = ?, refinement_partial = ?,
             last_heartbeat = ?
         WHERE id = ?`,
		task.Status,
		nullableString(task.SourcePath),
		nullableString(task.Title),
		nullableString(task.OptionsJSON),
		nullableString(task.StageResults),
		nullableString(task.ErrorKind),
		nullableString(task.ErrorMessage),
		task.UpdatedAt.Format(time.RFC3339Nano),
		nullableString(task.ProgressStage),
		task.ProgressPercent,
		nullableString(task.ProgressMessage),
		boolToInt(task.DiarizationDegraded),
		boolToInt(task.RefinementDegraded),
		boolToInt(task.RefinementPartial),
		nullableTime(task.LastHeartbeat),
		task.ID,
	); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// UpdateProgress persists only the progress columns for a task, leaving
// status, stage results, and heartbeat untouched. Stages call this frequently
// while a collaborator request is in flight.
func (s *Store) UpdateProgress(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	task.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks
         SET progress_stage = ?, progress_percent = ?, progress_message = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(task.ProgressStage),
		task.ProgressPercent,
		nullableString(task.ProgressMessage),
		task.UpdatedAt.Format(time.RFC3339Nano),
		task.ID,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// LatestBySourcePath returns the most recent task for a source file regardless
// of status, nil when the file has never been submitted. Ingest uses this to
// decide whether a watch folder file is new, already in flight, or already
// handled by a finished task.
func (s *Store) LatestBySourcePath(ctx context.Context, sourcePath string) (*Task, error) {
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE source_path = ? ORDER BY id DESC LIMIT 1`,
		sourcePath)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("task by source path: %w", err)
	}
	return task, nil
}

// TasksByStatus returns tasks matching a status ordered by creation time.
func (s *Store) TasksByStatus(ctx context.Context, status Status) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY created_at, id`, status)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// List returns tasks filtered by status set (or all tasks when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Remove deletes a task by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes tasks matching the given statuses, or every task when no
// status is provided.
func (s *Store) Clear(ctx context.Context, statuses ...Status) (int64, error) {
	if len(statuses) == 0 {
		res, err := s.execWithRetry(ctx, `DELETE FROM tasks`)
		if err != nil {
			return 0, fmt.Errorf("clear queue: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE status IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("clear by status: %w", err)
	}
	return res.RowsAffected()
}
