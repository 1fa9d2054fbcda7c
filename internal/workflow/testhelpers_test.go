package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"murmur/internal/config"
	"murmur/internal/notifications"
	"murmur/internal/queue"
	"murmur/internal/stage"
	"murmur/internal/testsupport"
)

type stubStage struct {
	name        string
	prepareHook func(*queue.Task)
	executeHook func(*queue.Task)
	prepareErr  error
	executeErr  error
	wait        time.Duration
	health      stage.Health

	mu       sync.Mutex
	executes int
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, task *queue.Task) error {
	if s.prepareHook != nil {
		s.prepareHook(task)
	}
	return s.prepareErr
}

func (s *stubStage) Execute(ctx context.Context, task *queue.Task) error {
	s.mu.Lock()
	s.executes++
	s.mu.Unlock()
	if s.wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.wait):
		}
	}
	if s.executeHook != nil {
		s.executeHook(task)
	}
	return s.executeErr
}

func (s *stubStage) HealthCheck(context.Context) stage.Health { return s.health }

func (s *stubStage) executions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executes
}

type recordingNotifier struct {
	mu       sync.Mutex
	payloads map[notifications.Event][]notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.payloads == nil {
		r.payloads = make(map[notifications.Event][]notifications.Payload)
	}
	r.payloads[event] = append(r.payloads[event], payload)
	return nil
}

func (r *recordingNotifier) count(event notifications.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads[event])
}

func (r *recordingNotifier) last(event notifications.Event) notifications.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.payloads[event]
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1]
}

// workflowConfig trims the poll interval so tests react to queue changes
// without waiting out the production default.
func workflowConfig(t *testing.T, opts ...testsupport.ConfigOption) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.Workers = 1
	return cfg
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Task {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for status %s", want)
		default:
		}
		task, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if task != nil && task.Status == want {
			return task
		}
		time.Sleep(25 * time.Millisecond)
	}
}
