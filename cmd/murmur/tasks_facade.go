package main

import (
	"context"
	"errors"
	"fmt"

	"murmur/internal/api"
	"murmur/internal/queue"
)

// taskAPI abstracts task operations so commands behave identically whether
// they reach the daemon over HTTP or read the queue database directly.
type taskAPI interface {
	Submit(ctx context.Context, req api.SubmitRequest) (*api.TaskView, error)
	List(ctx context.Context, status string) ([]api.TaskView, error)
	Describe(ctx context.Context, id int64) (*api.TaskView, error)
	Cancel(ctx context.Context, id int64) (api.CancelResult, error)
	Retry(ctx context.Context, id int64) (api.RetryResult, error)
	Clear(ctx context.Context, status string) (int64, error)
	Result(ctx context.Context, id int64, format string) ([]byte, string, error)
	Stats(ctx context.Context) (map[string]int, error)
}

// --- HTTP adapter ---

type clientTasks struct {
	client *api.Client
}

func (c *clientTasks) Submit(ctx context.Context, req api.SubmitRequest) (*api.TaskView, error) {
	return c.client.Submit(ctx, req)
}

func (c *clientTasks) List(ctx context.Context, status string) ([]api.TaskView, error) {
	return c.client.List(ctx, status)
}

func (c *clientTasks) Describe(ctx context.Context, id int64) (*api.TaskView, error) {
	view, err := c.client.Describe(ctx, id)
	if api.IsNotFound(err) {
		return nil, nil
	}
	return view, err
}

func (c *clientTasks) Cancel(ctx context.Context, id int64) (api.CancelResult, error) {
	result, err := c.client.Cancel(ctx, id)
	if api.IsNotFound(err) {
		return api.CancelResult{ID: id, Outcome: api.CancelNotFound}, nil
	}
	return result, err
}

func (c *clientTasks) Retry(ctx context.Context, id int64) (api.RetryResult, error) {
	result, err := c.client.Retry(ctx, id)
	if api.IsNotFound(err) {
		return api.RetryResult{ID: id, Outcome: api.RetryNotFound}, nil
	}
	return result, err
}

func (c *clientTasks) Clear(ctx context.Context, status string) (int64, error) {
	return c.client.Clear(ctx, status)
}

func (c *clientTasks) Result(ctx context.Context, id int64, format string) ([]byte, string, error) {
	return c.client.Result(ctx, id, format)
}

func (c *clientTasks) Stats(ctx context.Context) (map[string]int, error) {
	status, err := c.client.Status(ctx)
	if err != nil {
		return nil, err
	}
	return status.Workflow.QueueStats, nil
}

// --- Store adapter ---

type storeTasks struct {
	service *api.TaskService
}

func (s *storeTasks) Submit(ctx context.Context, req api.SubmitRequest) (*api.TaskView, error) {
	return s.service.Submit(ctx, req)
}

func (s *storeTasks) List(ctx context.Context, status string) ([]api.TaskView, error) {
	filters, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	return s.service.List(ctx, filters...)
}

func (s *storeTasks) Describe(ctx context.Context, id int64) (*api.TaskView, error) {
	return s.service.Describe(ctx, id)
}

func (s *storeTasks) Cancel(ctx context.Context, id int64) (api.CancelResult, error) {
	return s.service.Cancel(ctx, id)
}

func (s *storeTasks) Retry(ctx context.Context, id int64) (api.RetryResult, error) {
	return s.service.Retry(ctx, id)
}

func (s *storeTasks) Clear(ctx context.Context, status string) (int64, error) {
	filters, err := parseStatusFilter(status)
	if err != nil {
		return 0, err
	}
	return s.service.Clear(ctx, filters...)
}

func (s *storeTasks) Result(ctx context.Context, id int64, format string) ([]byte, string, error) {
	result, err := s.service.Result(ctx, id, format)
	if err != nil {
		return nil, "", err
	}
	switch result.Outcome {
	case api.ResultReady:
		return result.Body, result.ContentType, nil
	case api.ResultNotFound:
		return nil, "", fmt.Errorf("task %d not found", id)
	case api.ResultFailed:
		message := result.ErrorMessage
		if message == "" {
			message = "task failed"
		}
		return nil, "", errors.New(message)
	case api.ResultCancelled:
		return nil, "", errors.New("task was cancelled")
	default:
		return nil, "", errors.New("task has not completed")
	}
}

func (s *storeTasks) Stats(ctx context.Context) (map[string]int, error) {
	return s.service.Stats(ctx)
}

func parseStatusFilter(status string) ([]queue.Status, error) {
	if status == "" {
		return nil, nil
	}
	parsed, ok := queue.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	return []queue.Status{parsed}, nil
}
