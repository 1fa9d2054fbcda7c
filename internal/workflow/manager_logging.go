package workflow

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"murmur/internal/logging"
	"murmur/internal/queue"
	"murmur/internal/services"
)

func (m *Manager) workerLogger(worker int) *slog.Logger {
	if m.logger == nil {
		return logging.NewNop()
	}
	return m.logger.With(
		logging.String(logging.FieldComponent, "workflow-worker"),
		logging.Int(logging.FieldWorker, worker),
	)
}

func (m *Manager) stageLogger(ctx context.Context, workerLogger *slog.Logger) *slog.Logger {
	base := workerLogger
	if base == nil {
		base = m.logger
	}
	if base == nil {
		base = logging.NewNop()
	}
	return logging.WithContext(ctx, base)
}

func withStageContext(ctx context.Context, stageName string, worker int, task *queue.Task, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if task != nil {
		ctx = services.WithTaskID(ctx, task.ID)
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	ctx = services.WithWorker(ctx, worker)
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}

func deriveStageLabel(status queue.Status) string {
	if status == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(status), "_", " "))
	for i, part := range parts {
		if part == "" {
			continue
		}
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
