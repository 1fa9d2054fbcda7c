// Package api defines wire-format types, converters, and services for the
// daemon's HTTP API. It translates internal queue models into
// transport-friendly DTOs so CLI and remote consumers never couple to
// internal types.
//
// # Key Types
//
// TaskView: transport representation of a queue task with progress, degraded
// flags, transcript summary, and encoded artifact paths.
//
// WorkflowStatus: daemon running state, worker count, queue stats, stage
// health, and the most recently updated task.
//
// DaemonStatus: aggregated runtime information including external
// dependencies.
//
// # Services
//
// TaskService wraps the queue store with submission validation, cancel and
// retry outcomes, and result rendering. Client is the HTTP counterpart used
// by the command line to drive a running daemon.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (queue.Status, error kinds)
// are exposed as lowercase strings. Timestamps use RFC3339 with
// milliseconds. Option snapshots are passed through as json.RawMessage to
// avoid double-encoding, while submission overrides use the same snake_case
// keys the snapshot is stored with.
//
// Transcript summaries and artifact lists are derived from the persisted
// stage envelope rather than stored separately, so the API always reflects
// the pipeline's current state.
package api
