package textutil

import (
	"strings"
	"unicode"
)

// NormalizeToken lowercases value and strips every rune that is not a letter
// or digit. Returns "" when nothing survives.
func NormalizeToken(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Tokenize splits text into normalized tokens. Runs of letters and digits form
// one token each; characters from unspaced scripts (Han, Hiragana, Katakana,
// Hangul) are emitted as single-rune tokens so transcripts in those languages
// still produce comparable streams. Punctuation and whitespace separate tokens
// and are dropped.
func Tokenize(text string) []string {
	tokens := make([]string, 0, len(text)/4)
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range text {
		switch {
		case isUnspacedScript(r):
			flush()
			tokens = append(tokens, string(unicode.ToLower(r)))
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			current.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func isUnspacedScript(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
