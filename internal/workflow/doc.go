// Package workflow advances queue tasks through the transcription pipeline.
//
// The Manager claims queued tasks and walks each one through the configured
// stage handlers (decoder, transcriber, aligner, diarizer, refiner, encoder)
// in order, capturing progress and failure metadata along the way. A
// heartbeat goroutine accompanies every stage execution so crashed workers
// leave a visible trail, and a reclaimer loop returns their tasks to the
// queue. The manager also aggregates queue stats, calls stage health checks,
// and emits queue-level notifications when processing starts or completes.
//
// Each worker owns one task at a time and runs its stages strictly in order;
// concurrency comes from claiming different tasks, never from splitting one
// task across workers. Stage results live in the task envelope, so a
// reclaimed task replays the full sequence and already-completed stages skip
// straight through.
//
// Add new pipeline stages by extending StageSet, adding the queue status,
// and slotting the handler into the ConfigureStages order; this package is
// the authoritative home for that coordination logic.
package workflow
