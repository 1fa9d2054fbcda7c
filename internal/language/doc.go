// Package language provides unified language code normalization and mapping.
//
// All language-related conversions (ISO 639-1, display names, full word
// forms) are consolidated here so transcription hints, translation targets,
// and user-facing views agree on one table.
package language
