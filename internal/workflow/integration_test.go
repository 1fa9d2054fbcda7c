package workflow_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"murmur/internal/decoding"
	"murmur/internal/diarization"
	"murmur/internal/logging"
	"murmur/internal/notifications"
	"murmur/internal/queue"
	"murmur/internal/refine"
	"murmur/internal/services/asr"
	"murmur/internal/services/diarizer"
	"murmur/internal/services/llm"
	"murmur/internal/subtitles"
	"murmur/internal/testsupport"
	"murmur/internal/transcribing"
	"murmur/internal/transcript"
	"murmur/internal/workflow"
)

// TestWorkflowTranscribesEndToEnd drives a task through the real stage
// handlers against stubbed collaborator services. Decode is pre-seeded so no
// ffmpeg run is needed; every later stage does its actual work.
func TestWorkflowTranscribesEndToEnd(t *testing.T) {
	asrServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/transcribe":
			json.NewEncoder(w).Encode(map[string]any{
				"language": "en",
				"segments": []map[string]any{
					{"text": "good morning", "start": 0.0, "end": 1.1},
					{"text": "thanks everyone", "start": 4.5, "end": 6.0},
				},
			})
		case "/v1/align":
			json.NewEncoder(w).Encode(map[string]any{
				"segments": []map[string]any{
					{
						"text":  "good morning",
						"start": 0.0,
						"end":   1.1,
						"words": []map[string]any{
							{"word": "good", "start": 0.0, "end": 0.5, "confidence": 0.95},
							{"word": "morning", "start": 0.6, "end": 1.1, "confidence": 0.93},
						},
					},
					{
						"text":  "thanks everyone",
						"start": 4.5,
						"end":   6.0,
						"words": []map[string]any{
							{"word": "thanks", "start": 4.5, "end": 5.0, "confidence": 0.9},
							{"word": "everyone", "start": 5.1, "end": 6.0, "confidence": 0.92},
						},
					},
				},
			})
		default:
			t.Errorf("unexpected inference path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer asrServer.Close()

	diarServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/diarize" {
			t.Errorf("unexpected diarizer path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"turns": []map[string]any{
				{"speaker": "SPEAKER_00", "start": 0.0, "end": 2.0},
				{"speaker": "SPEAKER_01", "start": 4.0, "end": 6.5},
			},
		})
	}))
	defer diarServer.Close()

	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"content": `{"segments": [{"text": "Good morning."}, {"text": "Thanks, everyone."}]}`,
					},
					"finish_reason": "stop",
				},
			},
		})
	}))
	defer llmServer.Close()

	cfg := workflowConfig(t,
		testsupport.WithASRBaseURL(asrServer.URL),
		testsupport.WithDiarizerBaseURL(diarServer.URL),
		testsupport.WithLLMBaseURL(llmServer.URL),
		testsupport.WithOutputFormats("json", "srt"),
	)
	store := testsupport.MustOpenStore(t, cfg)

	source := filepath.Join(testsupport.BaseDir(cfg), "standup.mkv")
	testsupport.WriteFile(t, source, 2048)
	audioPath := filepath.Join(testsupport.BaseDir(cfg), "audio.wav")
	testsupport.WriteFile(t, audioPath, 2048)

	task := testsupport.NewTask(t, store, cfg, source, "Standup")
	env, err := task.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	env.Decode = &transcript.DecodeResult{AudioPath: audioPath, Duration: 6.5}
	if err := queue.PersistEnvelope(context.Background(), store, task, env); err != nil {
		t.Fatalf("PersistEnvelope: %v", err)
	}

	logger := logging.NewNop()
	asrClient := asr.NewClient(asr.Config{BaseURL: cfg.ASR.BaseURL})
	notifier := &recordingNotifier{}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
	mgr.ConfigureStages(workflow.StageSet{
		Decoder:     decoding.NewDecoder(cfg, store, logger),
		Transcriber: transcribing.NewTranscriberWithClient(cfg, store, logger, asrClient),
		Aligner:     transcribing.NewAlignerWithClient(cfg, store, logger, asrClient),
		Diarizer: diarization.NewDiarizerWithClient(cfg, store, logger,
			diarizer.NewClient(diarizer.Config{BaseURL: cfg.Diarization.BaseURL})),
		Refiner: refine.NewStageWithClient(cfg, store, logger,
			llm.NewClient(llm.Config{BaseURL: cfg.LLM.BaseURL, Model: "test-model"})),
		Encoder: subtitles.NewStage(cfg, store, logger),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	done := waitForStatus(t, store, task.ID, queue.StatusCompleted)
	if done.DiarizationDegraded || done.RefinementDegraded {
		t.Fatalf("expected clean completion, got degraded flags %+v", done)
	}

	env, err = done.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if env.Refine == nil || len(env.Refine.Segments) != 2 {
		t.Fatalf("expected two refined segments, got %+v", env.Refine)
	}
	if len(env.Final) != 2 {
		t.Fatalf("expected two final segments, got %d", len(env.Final))
	}
	if env.Final[0].Text != "Good morning." || env.Final[0].Speaker != "SPEAKER_00" {
		t.Fatalf("unexpected first final segment: %+v", env.Final[0])
	}
	if env.Final[1].Text != "Thanks, everyone." || env.Final[1].Speaker != "SPEAKER_01" {
		t.Fatalf("unexpected second final segment: %+v", env.Final[1])
	}

	data, err := os.ReadFile(filepath.Join(cfg.Paths.OutputDir, "standup.json"))
	if err != nil {
		t.Fatalf("read json artifact: %v", err)
	}
	var doc subtitles.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parse json artifact: %v", err)
	}
	if doc.Title != "Standup" || doc.Language != "en" {
		t.Fatalf("unexpected document header: %+v", doc)
	}
	if len(doc.Speakers) != 2 {
		t.Fatalf("expected two speakers, got %v", doc.Speakers)
	}

	srtData, err := os.ReadFile(filepath.Join(cfg.Paths.OutputDir, "standup.srt"))
	if err != nil {
		t.Fatalf("read srt artifact: %v", err)
	}
	if !strings.Contains(string(srtData), "SPEAKER_01: Thanks, everyone.") {
		t.Fatalf("expected speaker-prefixed cue in srt, got:\n%s", srtData)
	}

	deadline := time.After(10 * time.Second)
	for notifier.count(notifications.EventTaskCompleted) == 0 {
		select {
		case <-deadline:
			t.Fatal("expected completion notification")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	payload := notifier.last(notifications.EventTaskCompleted)
	if formats, _ := payload["formats"].(string); formats != "json, srt" {
		t.Fatalf("unexpected formats payload: %v", payload["formats"])
	}
}

// TestWorkflowResumesFromEnvelope simulates a worker crash between stages:
// the task already carries transcribe and align results when it is claimed,
// so those stages must skip their collaborator calls entirely.
func TestWorkflowResumesFromEnvelope(t *testing.T) {
	asrServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call to inference server: %s", r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer asrServer.Close()

	diarServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"turns": []map[string]any{
				{"speaker": "SPEAKER_00", "start": 0.0, "end": 2.0},
			},
		})
	}))
	defer diarServer.Close()

	cfg := workflowConfig(t,
		testsupport.WithASRBaseURL(asrServer.URL),
		testsupport.WithDiarizerBaseURL(diarServer.URL),
		testsupport.WithOutputFormats("json"),
	)
	cfg.Refinement.Enabled = false
	store := testsupport.MustOpenStore(t, cfg)

	source := filepath.Join(testsupport.BaseDir(cfg), "recovered.mp4")
	testsupport.WriteFile(t, source, 1024)
	audioPath := filepath.Join(testsupport.BaseDir(cfg), "audio.wav")
	testsupport.WriteFile(t, audioPath, 1024)

	task := testsupport.NewTask(t, store, cfg, source, "Recovered")
	env, err := task.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	words := []transcript.Word{
		{Text: "hello", Start: 0.1, End: 0.5, Confidence: 0.9},
		{Text: "again", Start: 0.6, End: 1.0, Confidence: 0.9},
	}
	env.Decode = &transcript.DecodeResult{AudioPath: audioPath, Duration: 2}
	env.Transcribe = &transcript.TranscribeResult{
		Language: "en",
		Segments: []transcript.RawSegment{{Start: 0.1, End: 1.0, Text: "hello again"}},
	}
	env.Align = &transcript.AlignResult{
		Segments: []transcript.Segment{transcript.NewSegment(1, words, "hello again")},
	}
	if err := queue.PersistEnvelope(context.Background(), store, task, env); err != nil {
		t.Fatalf("PersistEnvelope: %v", err)
	}

	logger := logging.NewNop()
	asrClient := asr.NewClient(asr.Config{BaseURL: cfg.ASR.BaseURL})
	mgr := workflow.NewManagerWithNotifier(cfg, store, logger, &recordingNotifier{})
	mgr.ConfigureStages(workflow.StageSet{
		Decoder:     decoding.NewDecoder(cfg, store, logger),
		Transcriber: transcribing.NewTranscriberWithClient(cfg, store, logger, asrClient),
		Aligner:     transcribing.NewAlignerWithClient(cfg, store, logger, asrClient),
		Diarizer: diarization.NewDiarizerWithClient(cfg, store, logger,
			diarizer.NewClient(diarizer.Config{BaseURL: cfg.Diarization.BaseURL})),
		Refiner: refine.NewStage(cfg, store, logger),
		Encoder: subtitles.NewStage(cfg, store, logger),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	done := waitForStatus(t, store, task.ID, queue.StatusCompleted)
	env, err = done.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if env.Diarize == nil || len(env.Diarize.Turns) != 1 {
		t.Fatalf("expected diarization to run on resume, got %+v", env.Diarize)
	}
	if len(env.Final) != 1 || env.Final[0].Speaker != "SPEAKER_00" {
		t.Fatalf("unexpected final transcript: %+v", env.Final)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, "recovered.json")); err != nil {
		t.Fatalf("expected json artifact: %v", err)
	}
}
