// Package services defines shared utilities consumed by the pipeline stage
// handlers and the collaborator clients.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, stage names, worker slots, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that tag failures with a
//     classification (inference, llm, timeout, configuration) the workflow
//     manager and status API rely on instead of string matching.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
