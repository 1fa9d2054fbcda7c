// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// This package has no murmur-specific dependencies and could be extracted
// as a standalone library.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//   - Format: container-level metadata (duration, size, format name)
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
//
// Helper methods on Result cover the decode stage's questions: does the
// container carry audio, which stream should be extracted, and how long
// the program runs.
package ffprobe
