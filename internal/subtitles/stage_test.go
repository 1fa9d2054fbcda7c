package subtitles_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"murmur/internal/config"
	"murmur/internal/logging"
	"murmur/internal/queue"
	"murmur/internal/services"
	"murmur/internal/subtitles"
	"murmur/internal/testsupport"
	"murmur/internal/transcript"
)

func encodeSegments() []transcript.Segment {
	return []transcript.Segment{
		{ID: 1, Start: 0, End: 2, Text: "Good morning everyone.", Speaker: "SPEAKER_00",
			Words: []transcript.Word{
				{Text: "Good", Start: 0, End: 0.5, Confidence: 0.9},
				{Text: "morning", Start: 0.5, End: 1.2, Confidence: 0.9},
				{Text: "everyone", Start: 1.2, End: 2, Confidence: 0.9},
			}},
		{ID: 2, Start: 5, End: 7, Text: "Thanks for joining.", Speaker: "SPEAKER_01",
			Words: []transcript.Word{
				{Text: "Thanks", Start: 5, End: 5.5, Confidence: 0.9},
				{Text: "for", Start: 5.5, End: 6, Confidence: 0.9},
				{Text: "joining", Start: 6, End: 7, Confidence: 0.9},
			}},
	}
}

func newEncodeTask(t *testing.T, store *queue.Store, cfg *config.Config) *queue.Task {
	t.Helper()
	source := filepath.Join(testsupport.BaseDir(cfg), "standup.mkv")
	testsupport.WriteFile(t, source, 64)
	task := testsupport.NewTask(t, store, cfg, source, "Standup")
	env, err := task.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	env.Decode = &transcript.DecodeResult{AudioPath: "/scratch/audio.wav", Duration: 9.5}
	env.Transcribe = &transcript.TranscribeResult{Language: "en", Segments: []transcript.RawSegment{
		{Start: 0, End: 2, Text: "good morning everyone"},
		{Start: 5, End: 7, Text: "thanks for joining"},
	}}
	env.Align = &transcript.AlignResult{Segments: encodeSegments()}
	if err := queue.PersistEnvelope(context.Background(), store, task, env); err != nil {
		t.Fatalf("PersistEnvelope: %v", err)
	}
	return task
}

func overrideFormats(t *testing.T, task *queue.Task, formats ...string) {
	t.Helper()
	opts, err := task.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	opts.Formats = formats
	encoded, err := opts.Encode()
	if err != nil {
		t.Fatalf("Encode options: %v", err)
	}
	task.OptionsJSON = encoded
}

func TestStageWritesRequestedArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOutputFormats("json", "srt"))
	store := testsupport.MustOpenStore(t, cfg)
	task := newEncodeTask(t, store, cfg)

	handler := subtitles.NewStage(cfg, store, logging.NewNop())
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
	if env.Encode == nil {
		t.Fatal("expected encode result on envelope")
	}
	if got := len(env.Encode.Succeeded()); got != 2 {
		t.Fatalf("expected two successful artifacts, got %d: %+v", got, env.Encode.Artifacts)
	}
	if len(env.Final) != 2 {
		t.Fatalf("expected final segments recorded, got %d", len(env.Final))
	}

	jsonPath := filepath.Join(cfg.Paths.OutputDir, "standup.json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json artifact: %v", err)
	}
	var doc subtitles.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode json artifact: %v", err)
	}
	if doc.Title != "Standup" || doc.Language != "en" || doc.Duration != 9.5 {
		t.Fatalf("unexpected document metadata: %+v", doc)
	}
	if len(doc.Speakers) != 2 {
		t.Fatalf("expected two speakers in document, got %v", doc.Speakers)
	}

	srt, err := os.ReadFile(filepath.Join(cfg.Paths.OutputDir, "standup.srt"))
	if err != nil {
		t.Fatalf("read srt artifact: %v", err)
	}
	if !strings.Contains(string(srt), "SPEAKER_00: Good morning everyone.") {
		t.Fatalf("expected speaker-prefixed cue in srt, got %q", srt)
	}
	if task.ProgressMessage != "Wrote 2 of 2 artifacts" {
		t.Fatalf("unexpected progress message %q", task.ProgressMessage)
	}
}

func TestStagePrefersRefinedSegments(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOutputFormats("srt"))
	store := testsupport.MustOpenStore(t, cfg)
	task := newEncodeTask(t, store, cfg)

	env, err := task.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	env.Refine = &transcript.RefineResult{Segments: []transcript.Segment{
		{ID: 1, Start: 0, End: 7, Text: "Good morning, and thanks for joining."},
	}}
	if err := queue.PersistEnvelope(context.Background(), store, task, env); err != nil {
		t.Fatalf("PersistEnvelope: %v", err)
	}

	handler := subtitles.NewStage(cfg, store, logging.NewNop())
	if err := handler.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	srt, err := os.ReadFile(filepath.Join(cfg.Paths.OutputDir, "standup.srt"))
	if err != nil {
		t.Fatalf("read srt artifact: %v", err)
	}
	if !strings.Contains(string(srt), "Good morning, and thanks for joining.") {
		t.Fatalf("expected refined text in artifact, got %q", srt)
	}
	if strings.Contains(string(srt), "SPEAKER_00: Good morning everyone.") {
		t.Fatalf("unrefined cue leaked into artifact: %q", srt)
	}
}

func TestStageRecordsPartialFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	task := newEncodeTask(t, store, cfg)
	overrideFormats(t, task, "json", "bogus")

	handler := subtitles.NewStage(cfg, store, logging.NewNop())
	if err := handler.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	env, err := task.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if env.Encode == nil {
		t.Fatal("expected encode result on envelope")
	}
	if got := len(env.Encode.Succeeded()); got != 1 {
		t.Fatalf("expected one successful artifact, got %d", got)
	}
	failed := env.Encode.Failed()
	if len(failed) != 1 || failed[0].Format != "bogus" || failed[0].Error == "" {
		t.Fatalf("expected recorded failure for bogus format, got %+v", failed)
	}
}

func TestStageFailsWhenEveryFormatFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	task := newEncodeTask(t, store, cfg)
	overrideFormats(t, task, "bogus")

	handler := subtitles.NewStage(cfg, store, logging.NewNop())
	err := handler.Execute(context.Background(), task)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient failure, got %v", err)
	}

	env, envErr := task.Envelope()
	if envErr != nil {
		t.Fatalf("Envelope: %v", envErr)
	}
	if env.Encode != nil {
		t.Fatalf("expected no encode result after total failure, got %+v", env.Encode)
	}
}

func TestStageSkipsWhenArtifactsRecorded(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	task := newEncodeTask(t, store, cfg)

	env, err := task.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	env.Encode = &transcript.EncodeResult{Artifacts: []transcript.Artifact{
		{Format: "json", Path: "/elsewhere/standup.json"},
	}}
	if err := queue.PersistEnvelope(context.Background(), store, task, env); err != nil {
		t.Fatalf("PersistEnvelope: %v", err)
	}

	handler := subtitles.NewStage(cfg, store, logging.NewNop())
	if err := handler.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	entries, err := os.ReadDir(cfg.Paths.OutputDir)
	if err == nil && len(entries) != 0 {
		t.Fatalf("expected no artifacts written on skip, found %d entries", len(entries))
	}
}

func TestStageRequiresTranscript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	source := filepath.Join(testsupport.BaseDir(cfg), "silent.mkv")
	testsupport.WriteFile(t, source, 64)
	task := testsupport.NewTask(t, store, cfg, source, "Silent")

	handler := subtitles.NewStage(cfg, store, logging.NewNop())
	err := handler.Execute(context.Background(), task)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}
