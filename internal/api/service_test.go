package api

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"murmur/internal/config"
	"murmur/internal/queue"
	"murmur/internal/services"
	"murmur/internal/testsupport"
)

func newTestService(t *testing.T) (*TaskService, *queue.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return NewTaskService(store, cfg), store, cfg
}

func writeMedia(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(cfg), name)
	testsupport.WriteFile(t, path, 2048)
	return path
}

func boolPtr(v bool) *bool    { return &v }
func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestSubmitAppliesDefaultsAndOverrides(t *testing.T) {
	svc, store, cfg := newTestService(t)
	source := writeMedia(t, cfg, "weekly_standup.mp3")

	view, err := svc.Submit(context.Background(), SubmitRequest{
		Path:        source,
		Diarize:     boolPtr(false),
		MaxSpeakers: intPtr(4),
		Formats:     []string{"SRT", "srt", "vtt"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if view == nil || view.ID == 0 {
		t.Fatalf("expected submitted task view, got %+v", view)
	}
	if view.Title != "Weekly Standup" {
		t.Fatalf("expected derived title, got %q", view.Title)
	}
	if view.Status != string(queue.StatusQueued) {
		t.Fatalf("unexpected status: %q", view.Status)
	}

	task, err := store.GetByID(context.Background(), view.ID)
	if err != nil || task == nil {
		t.Fatalf("GetByID: task=%v err=%v", task, err)
	}
	opts, err := task.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if opts.Diarize {
		t.Fatal("expected diarize override to disable diarization")
	}
	if opts.MaxSpeakers != 4 {
		t.Fatalf("expected max speakers 4, got %d", opts.MaxSpeakers)
	}
	if !opts.Refine {
		t.Fatal("expected refinement default to survive")
	}
	if len(opts.Formats) != 2 || opts.Formats[0] != "srt" || opts.Formats[1] != "vtt" {
		t.Fatalf("expected normalized formats, got %v", opts.Formats)
	}
}

func TestSubmitRejectsMissingFile(t *testing.T) {
	svc, _, cfg := newTestService(t)
	_, err := svc.Submit(context.Background(), SubmitRequest{
		Path: filepath.Join(testsupport.BaseDir(cfg), "nope.mp3"),
	})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if kind := services.Kind(err); kind != "validation" {
		t.Fatalf("expected validation error, got %q: %v", kind, err)
	}
}

func TestSubmitRejectsDirectory(t *testing.T) {
	svc, _, cfg := newTestService(t)
	_, err := svc.Submit(context.Background(), SubmitRequest{Path: testsupport.BaseDir(cfg)})
	if err == nil {
		t.Fatal("expected error for directory submission")
	}
	if kind := services.Kind(err); kind != "validation" {
		t.Fatalf("expected validation error, got %q: %v", kind, err)
	}
}

func TestSubmitRejectsBadOptions(t *testing.T) {
	svc, _, cfg := newTestService(t)
	source := writeMedia(t, cfg, "talk.mp3")

	_, err := svc.Submit(context.Background(), SubmitRequest{
		Path:        source,
		MinSpeakers: intPtr(5),
		MaxSpeakers: intPtr(2),
	})
	if err == nil {
		t.Fatal("expected error for inverted speaker bounds")
	}
	if kind := services.Kind(err); kind != "configuration" {
		t.Fatalf("expected configuration error, got %q: %v", kind, err)
	}

	_, err = svc.Submit(context.Background(), SubmitRequest{
		Path:         source,
		LanguageHint: strPtr("klingon"),
	})
	if err == nil {
		t.Fatal("expected error for unknown language hint")
	}
	if kind := services.Kind(err); kind != "configuration" {
		t.Fatalf("expected configuration error, got %q: %v", kind, err)
	}
}

func TestDescribeMissingReturnsNil(t *testing.T) {
	svc, _, _ := newTestService(t)
	view, err := svc.Describe(context.Background(), 12345)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if view != nil {
		t.Fatalf("expected nil view, got %+v", view)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	svc, store, cfg := newTestService(t)
	source := writeMedia(t, cfg, "talk.mp3")
	testsupport.NewTask(t, store, cfg, source, "One")
	failed := testsupport.NewTask(t, store, cfg, source, "Two")
	failed.SetFailed("inference", "model crashed")
	if err := store.Update(context.Background(), failed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	views, err := svc.List(context.Background(), queue.StatusFailed)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(views) != 1 || views[0].ID != failed.ID {
		t.Fatalf("expected only the failed task, got %+v", views)
	}
	if views[0].ErrorKind != "inference" {
		t.Fatalf("expected error kind to carry over, got %q", views[0].ErrorKind)
	}

	all, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both tasks, got %d", len(all))
	}
}

func TestCancelOutcomes(t *testing.T) {
	svc, store, cfg := newTestService(t)
	ctx := context.Background()
	source := writeMedia(t, cfg, "talk.mp3")

	queued := testsupport.NewTask(t, store, cfg, source, "Queued")
	result, err := svc.Cancel(ctx, queued.ID)
	if err != nil {
		t.Fatalf("Cancel queued: %v", err)
	}
	if result.Outcome != CancelFinalized || result.Status != string(queue.StatusCancelled) {
		t.Fatalf("unexpected queued cancel result: %+v", result)
	}

	inflight := testsupport.NewTask(t, store, cfg, source, "Inflight")
	inflight.Status = queue.StatusTranscribing
	if err := store.Update(ctx, inflight); err != nil {
		t.Fatalf("Update: %v", err)
	}
	result, err = svc.Cancel(ctx, inflight.ID)
	if err != nil {
		t.Fatalf("Cancel inflight: %v", err)
	}
	if result.Outcome != CancelPending {
		t.Fatalf("expected cancelling outcome, got %+v", result)
	}
	refreshed, err := store.GetByID(ctx, inflight.ID)
	if err != nil || refreshed == nil {
		t.Fatalf("GetByID: task=%v err=%v", refreshed, err)
	}
	if !refreshed.CancelRequested {
		t.Fatal("expected cancel flag on in-flight task")
	}

	done := testsupport.NewTask(t, store, cfg, source, "Done")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update: %v", err)
	}
	result, err = svc.Cancel(ctx, done.ID)
	if err != nil {
		t.Fatalf("Cancel completed: %v", err)
	}
	if result.Outcome != CancelAlreadyFinished {
		t.Fatalf("expected already finished outcome, got %+v", result)
	}

	result, err = svc.Cancel(ctx, 98765)
	if err != nil {
		t.Fatalf("Cancel missing: %v", err)
	}
	if result.Outcome != CancelNotFound {
		t.Fatalf("expected not found outcome, got %+v", result)
	}
}

func TestRetryOutcomes(t *testing.T) {
	svc, store, cfg := newTestService(t)
	ctx := context.Background()
	source := writeMedia(t, cfg, "talk.mp3")

	failed := testsupport.NewTask(t, store, cfg, source, "Failed")
	failed.SetFailed("transient", "service unavailable")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update: %v", err)
	}
	result, err := svc.Retry(ctx, failed.ID)
	if err != nil {
		t.Fatalf("Retry failed task: %v", err)
	}
	if result.Outcome != RetryQueued || result.NewStatus != string(queue.StatusQueued) {
		t.Fatalf("unexpected retry result: %+v", result)
	}
	refreshed, err := store.GetByID(ctx, failed.ID)
	if err != nil || refreshed == nil {
		t.Fatalf("GetByID: task=%v err=%v", refreshed, err)
	}
	if refreshed.Status != queue.StatusQueued {
		t.Fatalf("expected requeued task, got %s", refreshed.Status)
	}

	queued := testsupport.NewTask(t, store, cfg, source, "Queued")
	result, err = svc.Retry(ctx, queued.ID)
	if err != nil {
		t.Fatalf("Retry queued task: %v", err)
	}
	if result.Outcome != RetryNotFailed {
		t.Fatalf("expected not failed outcome, got %+v", result)
	}

	result, err = svc.Retry(ctx, 98765)
	if err != nil {
		t.Fatalf("Retry missing: %v", err)
	}
	if result.Outcome != RetryNotFound {
		t.Fatalf("expected not found outcome, got %+v", result)
	}
}

func TestClearByStatus(t *testing.T) {
	svc, store, cfg := newTestService(t)
	ctx := context.Background()
	source := writeMedia(t, cfg, "talk.mp3")

	for i := 0; i < 2; i++ {
		task := testsupport.NewTask(t, store, cfg, source, "Done")
		task.Status = queue.StatusCompleted
		if err := store.Update(ctx, task); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	keep := testsupport.NewTask(t, store, cfg, source, "Keep")

	removed, err := svc.Clear(ctx, queue.StatusCompleted)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != keep.ID {
		t.Fatalf("expected only the queued task to remain, got %+v", remaining)
	}
}

func TestResultLifecycle(t *testing.T) {
	svc, store, cfg := newTestService(t)
	ctx := context.Background()
	source := writeMedia(t, cfg, "interview.mp3")

	task := testsupport.NewTask(t, store, cfg, source, "Interview")

	result, err := svc.Result(ctx, task.ID, "")
	if err != nil {
		t.Fatalf("Result pending: %v", err)
	}
	if result.Outcome != ResultPending || result.Status != string(queue.StatusQueued) {
		t.Fatalf("expected pending outcome, got %+v", result)
	}

	task.SetFailed("inference", "ASR service crashed")
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}
	result, err = svc.Result(ctx, task.ID, "")
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if result.Outcome != ResultFailed {
		t.Fatalf("expected failed outcome, got %+v", result)
	}
	if result.ErrorKind != "inference" || result.ErrorMessage != "ASR service crashed" {
		t.Fatalf("expected recorded error to carry over, got %+v", result)
	}

	task.Status = queue.StatusCompleted
	task.ErrorKind = ""
	task.ErrorMessage = ""
	task.StageResults = encodedEnvelope(t)
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	result, err = svc.Result(ctx, task.ID, "")
	if err != nil {
		t.Fatalf("Result completed: %v", err)
	}
	if result.Outcome != ResultReady || result.Format != "json" {
		t.Fatalf("expected ready json result, got %+v", result)
	}
	if result.ContentType != "application/json" {
		t.Fatalf("unexpected content type: %q", result.ContentType)
	}
	body := string(result.Body)
	if !strings.Contains(body, "Hello there.") || !strings.Contains(body, `"language": "en"`) {
		t.Fatalf("unexpected json body: %s", body)
	}

	result, err = svc.Result(ctx, task.ID, "srt")
	if err != nil {
		t.Fatalf("Result srt: %v", err)
	}
	if result.ContentType != "application/x-subrip" {
		t.Fatalf("unexpected srt content type: %q", result.ContentType)
	}
	if !strings.Contains(string(result.Body), "00:00:00,000 --> 00:00:02,500") {
		t.Fatalf("unexpected srt body: %s", result.Body)
	}
	if !strings.Contains(string(result.Body), "SPEAKER_00: Hello there.") {
		t.Fatalf("expected speaker prefix in srt body: %s", result.Body)
	}

	if _, err := svc.Result(ctx, task.ID, "docx"); err == nil {
		t.Fatal("expected error for unknown format")
	} else if kind := services.Kind(err); kind != "validation" {
		t.Fatalf("expected validation error, got %q: %v", kind, err)
	}

	result, err = svc.Result(ctx, 98765, "")
	if err != nil {
		t.Fatalf("Result missing: %v", err)
	}
	if result.Outcome != ResultNotFound {
		t.Fatalf("expected not found outcome, got %+v", result)
	}
}

func TestResultCancelledTask(t *testing.T) {
	svc, store, cfg := newTestService(t)
	ctx := context.Background()
	source := writeMedia(t, cfg, "talk.mp3")

	task := testsupport.NewTask(t, store, cfg, source, "Talk")
	if _, err := store.RequestCancel(ctx, task.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}

	result, err := svc.Result(ctx, task.ID, "")
	if err != nil {
		t.Fatalf("Result cancelled: %v", err)
	}
	if result.Outcome != ResultCancelled || result.Status != string(queue.StatusCancelled) {
		t.Fatalf("expected cancelled outcome, got %+v", result)
	}
}
