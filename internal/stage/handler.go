package stage

import (
	"context"
	"log/slog"

	"murmur/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Task) error
	Execute(context.Context, *queue.Task) error
	HealthCheck(context.Context) Health
}

// LoggerAware is implemented by handlers that accept a per-task logger
// before Prepare runs.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
