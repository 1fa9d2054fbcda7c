package api

import (
	"context"

	"murmur/internal/queue"
)

// CancelOutcome classifies what a cancel request achieved.
type CancelOutcome string

const (
	// CancelFinalized means the task moved straight to cancelled.
	CancelFinalized CancelOutcome = "cancelled"
	// CancelPending means the flag is set and the worker will stop at the
	// next stage boundary.
	CancelPending CancelOutcome = "cancelling"
	// CancelNotFound means no task carries the identifier.
	CancelNotFound CancelOutcome = "not_found"
	// CancelAlreadyFinished means the task completed or failed first.
	CancelAlreadyFinished CancelOutcome = "already_finished"
)

// CancelResult reports the outcome of a cancel request.
type CancelResult struct {
	ID      int64         `json:"id"`
	Outcome CancelOutcome `json:"outcome"`
	Status  string        `json:"status,omitempty"`
}

// RetryOutcome classifies what a retry request achieved.
type RetryOutcome string

const (
	RetryQueued    RetryOutcome = "retried"
	RetryNotFound  RetryOutcome = "not_found"
	RetryNotFailed RetryOutcome = "not_failed"
)

// RetryResult reports the outcome of a retry request.
type RetryResult struct {
	ID        int64        `json:"id"`
	Outcome   RetryOutcome `json:"outcome"`
	NewStatus string       `json:"new_status,omitempty"`
}

// Cancel requests cancellation of a task. Queued tasks finalize immediately,
// in-flight tasks stop at the next stage boundary, and finished tasks are
// left untouched.
func (s *TaskService) Cancel(ctx context.Context, id int64) (CancelResult, error) {
	if s == nil || s.store == nil {
		return CancelResult{ID: id, Outcome: CancelNotFound}, nil
	}
	task, err := s.store.RequestCancel(ctx, id)
	if err != nil {
		return CancelResult{}, err
	}
	if task == nil {
		return CancelResult{ID: id, Outcome: CancelNotFound}, nil
	}

	result := CancelResult{ID: id, Status: string(task.Status)}
	switch {
	case task.Status == queue.StatusCancelled:
		result.Outcome = CancelFinalized
	case task.IsTerminal():
		result.Outcome = CancelAlreadyFinished
	default:
		result.Outcome = CancelPending
	}
	return result, nil
}

// Retry re-queues a failed task for a fresh run. Tasks in any other state
// are reported rather than modified.
func (s *TaskService) Retry(ctx context.Context, id int64) (RetryResult, error) {
	if s == nil || s.store == nil {
		return RetryResult{ID: id, Outcome: RetryNotFound}, nil
	}
	task, err := s.store.GetByID(ctx, id)
	if err != nil {
		return RetryResult{}, err
	}
	if task == nil {
		return RetryResult{ID: id, Outcome: RetryNotFound}, nil
	}
	if task.Status != queue.StatusFailed {
		return RetryResult{ID: id, Outcome: RetryNotFailed}, nil
	}

	updated, err := s.store.RetryFailed(ctx, id)
	if err != nil {
		return RetryResult{}, err
	}
	if updated == 0 {
		return RetryResult{ID: id, Outcome: RetryNotFailed}, nil
	}
	return RetryResult{ID: id, Outcome: RetryQueued, NewStatus: string(queue.StatusQueued)}, nil
}
