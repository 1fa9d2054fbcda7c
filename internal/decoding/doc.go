// Package decoding implements the first pipeline stage: probing the source
// container and extracting the normalized audio track every later stage
// consumes.
//
// The decoder validates that the source still exists and carries at least one
// audio stream, then shells out to ffmpeg to produce a mono 16kHz PCM WAV in
// the task's scratch directory. The resulting audio path and media duration
// are recorded on the task envelope so a restarted daemon can skip extraction
// when the artifact survives.
package decoding
