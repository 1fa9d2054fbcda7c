// Package textutil provides text processing utilities for transcript token
// normalization and filename sanitization.
//
// The primary use cases are:
//   - Normalizing transcript words and model output into comparable tokens
//   - Tokenizing free text, including scripts written without word spacing
//   - Sanitizing filenames and path segments for safe filesystem use
//
// Token normalization lowercases text and strips punctuation while keeping
// letters and digits from any script, so word streams from different sources
// compare deterministically.
package textutil
