package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"murmur/internal/config"
)

const userAgent = "Murmur/0.1.0"

// Event identifies a task or queue milestone worth telling the user about.
type Event string

const (
	EventTaskQueued     Event = "task_queued"
	EventTaskCompleted  Event = "task_completed"
	EventTaskDegraded   Event = "task_degraded"
	EventError          Event = "error"
	EventQueueStarted   Event = "queue_started"
	EventQueueCompleted Event = "queue_completed"
	EventTest           Event = "test"
)

// Payload carries event-specific values the notifier renders into a message.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		toggles:  cfg.Notifications,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	toggles  config.Notifications
	client   *http.Client
}

// Publish renders the event into an ntfy message and posts it, honoring the
// per-event configuration toggles. Suppressed events return nil.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled(event) {
		return nil
	}
	data, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventTaskQueued:
		return n.toggles.Queued
	case EventTaskCompleted, EventQueueStarted, EventQueueCompleted:
		return n.toggles.Completed
	case EventTaskDegraded:
		return n.toggles.Degraded
	case EventError:
		return n.toggles.Errors
	case EventTest:
		return true
	}
	return false
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventTaskQueued:
		title := stringValue(payload, "title")
		body := fmt.Sprintf("Queued for transcription: %s", title)
		if source := stringValue(payload, "source"); source != "" {
			body = fmt.Sprintf("%s\nFile: %s", body, source)
		}
		return message{
			title: "Murmur - Task Queued",
			body:  body,
			tags:  []string{"murmur", "task", "queued"},
		}, true
	case EventTaskCompleted:
		title := stringValue(payload, "title")
		body := fmt.Sprintf("✅ Transcript ready: %s", title)
		if formats := stringValue(payload, "formats"); formats != "" {
			body = fmt.Sprintf("%s (%s)", body, formats)
		}
		return message{
			title:    "Murmur - Complete",
			body:     body,
			tags:     []string{"murmur", "task", "completed"},
			priority: "high",
		}, true
	case EventTaskDegraded:
		title := stringValue(payload, "title")
		detail := stringValue(payload, "detail")
		if detail == "" {
			detail = "an optional stage was skipped"
		}
		return message{
			title: "Murmur - Degraded Result",
			body:  fmt.Sprintf("Transcript for %s finished degraded: %s", title, detail),
			tags:  []string{"murmur", "task", "degraded"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if contextLabel := stringValue(payload, "context"); contextLabel != "" {
			builder.WriteString(" with ")
			builder.WriteString(contextLabel)
		}
		builder.WriteString(": ")
		if detail := errorValue(payload, "error"); detail != "" {
			builder.WriteString(detail)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Murmur - Error",
			body:     builder.String(),
			tags:     []string{"murmur", "error", "alert"},
			priority: "high",
		}, true
	case EventQueueStarted:
		return message{
			title: "Murmur - Queue Started",
			body:  fmt.Sprintf("Started processing queue with %d tasks", intValue(payload, "count")),
			tags:  []string{"murmur", "queue", "started"},
		}, true
	case EventQueueCompleted:
		processed := intValue(payload, "processed")
		failed := intValue(payload, "failed")
		duration := durationValue(payload, "duration").Round(time.Second)
		if duration < 0 {
			duration = 0
		}
		durationText := duration.String()
		if duration == 0 {
			durationText = "0s"
		}
		title := "Murmur - Queue Complete"
		body := fmt.Sprintf("Queue processing complete: %d tasks processed in %s", processed, durationText)
		if failed > 0 {
			title = "Murmur - Queue Complete (with errors)"
			body = fmt.Sprintf("Queue processing complete: %d succeeded, %d failed in %s", processed, failed, durationText)
		}
		return message{
			title: title,
			body:  body,
			tags:  []string{"murmur", "queue", "completed"},
		}, true
	case EventTest:
		return message{
			title:    "Murmur - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"murmur", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func stringValue(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	if value, ok := payload[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func intValue(payload Payload, key string) int {
	if payload == nil {
		return 0
	}
	switch value := payload[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	}
	return 0
}

func durationValue(payload Payload, key string) time.Duration {
	if payload == nil {
		return 0
	}
	if value, ok := payload[key].(time.Duration); ok {
		return value
	}
	return 0
}

func errorValue(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch value := payload[key].(type) {
	case error:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(value.Error())
	case string:
		return strings.TrimSpace(value)
	}
	return ""
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
