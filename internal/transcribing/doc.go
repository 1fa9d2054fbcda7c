// Package transcribing implements the speech recognition and forced
// alignment pipeline stages.
//
// Both stages talk to the same inference server: the transcriber turns the
// extracted audio into raw text segments with a detected or pinned language,
// and the aligner replays those segments against the audio to attach
// word-level timestamps. Results land on the task envelope so either stage
// can be skipped on resume.
package transcribing
