// Package daemon coordinates the long-running murmurd process.
//
// It wires queue storage, the workflow manager, the watch folder ingest
// watcher, and the HTTP API into a single lifecycle with flock-based locking
// to prevent multiple instances. Startup runs the preflight checks and
// re-queues tasks that were mid-flight when a previous process died; blocking
// preflight failures refuse startup entirely.
//
// Keep orchestration logic here: individual pipeline stages live in their own
// packages while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
