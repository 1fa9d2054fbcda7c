package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"murmur/internal/config"
	"murmur/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTaskCompleted, notifications.Payload{"title": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "task queued",
			event: notifications.EventTaskQueued,
			payload: notifications.Payload{
				"title":  "Town Hall",
				"source": "/media/town-hall.mp3",
			},
			expectTitle:   "Murmur - Task Queued",
			expectMessage: "Queued for transcription: Town Hall\nFile: /media/town-hall.mp3",
			expectTags:    "murmur,task,queued",
		},
		{
			name:  "task completed",
			event: notifications.EventTaskCompleted,
			payload: notifications.Payload{
				"title":   "Town Hall",
				"formats": "json, srt",
			},
			expectTitle:    "Murmur - Complete",
			expectMessage:  "✅ Transcript ready: Town Hall (json, srt)",
			expectTags:     "murmur,task,completed",
			expectPriority: "high",
		},
		{
			name:  "task degraded",
			event: notifications.EventTaskDegraded,
			payload: notifications.Payload{
				"title":  "Town Hall",
				"detail": "diarization unavailable",
			},
			expectTitle:   "Murmur - Degraded Result",
			expectMessage: "Transcript for Town Hall finished degraded: diarization unavailable",
			expectTags:    "murmur,task,degraded",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "transcribe (task #4)",
				"error":   "inference server unreachable",
			},
			expectTitle:    "Murmur - Error",
			expectMessage:  "❌ Error with transcribe (task #4): inference server unreachable",
			expectTags:     "murmur,error,alert",
			expectPriority: "high",
		},
		{
			name:  "queue completed with failures",
			event: notifications.EventQueueCompleted,
			payload: notifications.Payload{
				"processed": 3,
				"failed":    1,
				"duration":  90 * time.Second,
			},
			expectTitle:   "Murmur - Queue Complete (with errors)",
			expectMessage: "Queue processing complete: 3 succeeded, 1 failed in 1m30s",
			expectTags:    "murmur,queue,completed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.Queued = true
			cfg.Notifications.Completed = true
			cfg.Notifications.Degraded = true
			cfg.Notifications.Errors = true

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Queued = false
	cfg.Notifications.Completed = false
	cfg.Notifications.Degraded = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	suppressed := []notifications.Event{
		notifications.EventTaskQueued,
		notifications.EventTaskCompleted,
		notifications.EventTaskDegraded,
		notifications.EventError,
		notifications.EventQueueStarted,
		notifications.EventQueueCompleted,
	}

	for _, event := range suppressed {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"title": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}
