// Package transcript defines the annotation data model shared by every
// pipeline stage.
//
// Word, SpeakerTurn, and Segment are the three annotation streams the
// pipeline reconciles: word-level forced-alignment timestamps, diarization
// turns, and subtitle segments. Word timestamps are authoritative; stages
// never mutate words produced upstream and instead build new segments that
// reference them.
//
// The Envelope type captures each stage's persisted output (decode,
// transcribe, align, diarize, refine, encode) plus the final segment
// sequence. It is stored as JSON in queue.envelope and written back after
// every stage, which is what makes crash resumption and post-hoc debugging
// possible.
//
// # Entry Points
//
// Parse / Envelope.Marshal: load and persist the envelope.
// NewSegment: build a segment whose span and confidence derive from words.
// Envelope.Summarize: condense a finished transcript for status views.
package transcript
