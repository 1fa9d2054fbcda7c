package refine_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"murmur/internal/config"
	"murmur/internal/diarization"
	"murmur/internal/logging"
	"murmur/internal/queue"
	"murmur/internal/refine"
	"murmur/internal/services/llm"
	"murmur/internal/testsupport"
	"murmur/internal/transcript"
)

func stageSegments() []transcript.Segment {
	return []transcript.Segment{
		sourceSegment("", word("hi", 0, 0.3), word("there", 0.3, 0.6)),
		sourceSegment("", word("all", 1.0, 1.2), word("good", 1.2, 1.5)),
	}
}

func newRefineTask(t *testing.T, store *queue.Store, cfg *config.Config, diarized bool) *queue.Task {
	t.Helper()
	source := filepath.Join(testsupport.BaseDir(cfg), "talk.mkv")
	testsupport.WriteFile(t, source, 64)
	task := testsupport.NewTask(t, store, cfg, source, "Talk")
	env, err := task.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	env.Decode = &transcript.DecodeResult{AudioPath: "/scratch/audio.wav", Duration: 2}
	env.Transcribe = &transcript.TranscribeResult{Language: "en", Segments: []transcript.RawSegment{
		{Start: 0, End: 0.6, Text: "hi there"},
		{Start: 1.0, End: 1.5, Text: "all good"},
	}}
	env.Align = &transcript.AlignResult{Segments: stageSegments()}
	if diarized {
		turns := []transcript.SpeakerTurn{
			{Speaker: "SPEAKER_00", Start: 0, End: 0.8},
			{Speaker: "SPEAKER_01", Start: 0.9, End: 1.6},
		}
		merged, _ := diarization.Apply(stageSegments(), turns)
		env.Diarize = &transcript.DiarizeResult{Turns: turns, Segments: merged}
	}
	if err := queue.PersistEnvelope(context.Background(), store, task, env); err != nil {
		t.Fatalf("PersistEnvelope: %v", err)
	}
	return task
}

func TestStageRefinesDiarizedTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionReply(t, `{"segments": [{"text": "Hi there."}, {"text": "All good."}]}`))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	task := newRefineTask(t, store, cfg, true)

	client := llm.NewClient(llm.Config{BaseURL: server.URL, Model: "test-model"})
	handler := refine.NewStageWithClient(cfg, store, logging.NewNop(), client)
	if err := handler.Prepare(context.Background(), task); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	env, err := task.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if env.Refine == nil {
		t.Fatal("expected refine result on envelope")
	}
	if len(env.Refine.Segments) != 2 {
		t.Fatalf("expected two refined segments, got %d", len(env.Refine.Segments))
	}
	if env.Refine.Segments[0].Text != "Hi there." || env.Refine.Segments[1].Text != "All good." {
		t.Fatalf("unexpected refined texts: %q, %q", env.Refine.Segments[0].Text, env.Refine.Segments[1].Text)
	}
	if env.Refine.Segments[0].Speaker != "SPEAKER_00" || env.Refine.Segments[1].Speaker != "SPEAKER_01" {
		t.Fatalf("expected speakers reattributed after refinement, got %q, %q",
			env.Refine.Segments[0].Speaker, env.Refine.Segments[1].Speaker)
	}
	if task.RefinementDegraded {
		t.Fatal("expected task not degraded")
	}
}

func TestStageDegradesOnModelFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	task := newRefineTask(t, store, cfg, false)

	client := llm.NewClient(llm.Config{BaseURL: server.URL, Model: "test-model"})
	handler := refine.NewStageWithClient(cfg, store, logging.NewNop(), client)
	if err := handler.Execute(context.Background(), task); err != nil {
		t.Fatalf("expected degraded continuation, got %v", err)
	}

	if !task.RefinementDegraded {
		t.Fatal("expected refinement degraded flag")
	}
	env, err := task.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if env.Refine != nil {
		t.Fatalf("expected no refine result after failure, got %+v", env.Refine)
	}

	persisted, err := store.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !persisted.RefinementDegraded {
		t.Fatal("expected degradation flag persisted")
	}
}

func TestStageSkipsWhenRefinementDisabled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call to model endpoint: %s", r.URL.Path)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Refinement.Enabled = false
	store := testsupport.MustOpenStore(t, cfg)
	task := newRefineTask(t, store, cfg, false)

	client := llm.NewClient(llm.Config{BaseURL: server.URL, Model: "test-model"})
	handler := refine.NewStageWithClient(cfg, store, logging.NewNop(), client)
	if err := handler.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	env, err := task.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if env.Refine != nil {
		t.Fatalf("expected no refine result when disabled, got %+v", env.Refine)
	}
	if task.RefinementDegraded {
		t.Fatal("skipping refinement must not mark the task degraded")
	}
}

func TestStageSkipsWhenAlreadyRefined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call to model endpoint: %s", r.URL.Path)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	task := newRefineTask(t, store, cfg, false)

	env, err := task.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	env.Refine = &transcript.RefineResult{Segments: []transcript.Segment{
		transcript.NewSegment(1, []transcript.Word{word("done", 0, 1)}, "Done."),
	}}
	if err := queue.PersistEnvelope(context.Background(), store, task, env); err != nil {
		t.Fatalf("PersistEnvelope: %v", err)
	}

	client := llm.NewClient(llm.Config{BaseURL: server.URL, Model: "test-model"})
	handler := refine.NewStageWithClient(cfg, store, logging.NewNop(), client)
	if err := handler.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	env, err = task.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if env.Refine == nil || len(env.Refine.Segments) != 1 || env.Refine.Segments[0].Text != "Done." {
		t.Fatal("expected recorded refinement preserved")
	}
}
