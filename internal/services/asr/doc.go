// Package asr calls the transcription and alignment endpoints of the
// co-located inference server. Transcribe produces raw text segments plus the
// detected language; Align attaches word level timestamps to those segments.
// Audio is referenced by path because the server shares the scratch
// filesystem with the daemon.
package asr
