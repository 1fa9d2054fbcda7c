// Package queue persists transcription tasks in SQLite and exposes helpers
// for driving their lifecycle.
//
// The Store manages database connections, schema initialization, atomic task
// claiming, heartbeat tracking, stale-task recovery, and the status
// transitions that mirror the pipeline stages. Task rows capture the options
// snapshot, the per-stage results envelope, progress, degradation flags, and
// error classification so stages can coordinate without shared state.
//
// The database is treated as transient storage for in-flight jobs rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
package queue
