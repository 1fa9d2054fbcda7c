package refine

import (
	"strings"

	"murmur/internal/services"
	"murmur/internal/textutil"
	"murmur/internal/transcript"
)

// Result carries the reconciled segments plus counters for stage logging.
type Result struct {
	Segments  []transcript.Segment
	Anchored  int
	Discarded int
	Partial   int
}

// tokenRef ties one normalized token to the word it came from. A word can
// contribute several tokens ("don't" splits into two) and punctuation-only
// words contribute none.
type tokenRef struct {
	token string
	word  int
}

// Reanchor projects model proposals onto the original word timeline. Proposals
// are matched in order against the normalized word token stream; an accepted
// proposal owns the word range its match covers and takes that range's
// timestamps. Words the proposals skip, and spans of discarded proposals, fall
// back to the original segmentation flagged refinement_partial. Returns an
// alignment error when not a single proposal can be traced to the words, in
// which case callers keep the pre-refinement segments.
func Reanchor(original []transcript.Segment, candidates []Candidate, threshold float64) (Result, error) {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultAnchorThreshold
	}
	words := transcript.FlattenWords(original)
	if len(words) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "refine", "anchor",
			"Transcript has no words to anchor against", nil)
	}

	// wordSeg[i] is the original segment owning word i.
	wordSeg := make([]int, 0, len(words))
	for s := range original {
		for range original[s].Words {
			wordSeg = append(wordSeg, s)
		}
	}

	refs := make([]tokenRef, 0, len(words))
	for i := range words {
		for _, tok := range textutil.Tokenize(words[i].Text) {
			refs = append(refs, tokenRef{token: tok, word: i})
		}
	}

	var res Result
	out := make([]transcript.Segment, 0, len(candidates))
	wordCursor := 0
	refCursor := 0

	flushGap := func(upto int) {
		if wordCursor >= upto {
			return
		}
		fallback := fallbackSegments(original, words, wordSeg, wordCursor, upto-1)
		res.Partial += len(fallback)
		out = append(out, fallback...)
		wordCursor = upto
	}

	for _, cand := range candidates {
		tokens := textutil.Tokenize(cand.Text)
		if len(tokens) == 0 {
			res.Discarded++
			continue
		}
		limit := refCursor + len(tokens)*2 + 16
		if limit > len(refs) {
			limit = len(refs)
		}
		matched := lcsIndices(tokens, refs[refCursor:limit])
		coverage := float64(len(matched)) / float64(len(tokens))
		if len(matched) == 0 || coverage < threshold {
			res.Discarded++
			continue
		}

		firstWord := refs[refCursor+matched[0]].word
		lastWord := refs[refCursor+matched[len(matched)-1]].word

		// Words the model dropped inside the same source segment ride along
		// with the accepted proposal; longer skipped spans fall back to the
		// original segmentation so no content is lost.
		absorbFrom := firstWord
		for absorbFrom > wordCursor && wordSeg[absorbFrom-1] == wordSeg[firstWord] {
			absorbFrom--
		}
		flushGap(absorbFrom)

		seg := transcript.NewSegment(0, words[absorbFrom:lastWord+1], strings.TrimSpace(cand.Text))
		seg.TranslatedText = cand.Translation
		if len(matched) < len(tokens) {
			seg.RefinementPartial = true
			res.Partial++
		}
		out = append(out, seg)
		res.Anchored++

		wordCursor = lastWord + 1
		for refCursor < len(refs) && refs[refCursor].word <= lastWord {
			refCursor++
		}
	}

	if res.Anchored == 0 {
		return Result{}, services.Wrap(services.ErrAlignmentMismatch, "refine", "anchor",
			"No model segment could be traced back to transcript words", nil)
	}

	flushGap(len(words))
	transcript.Renumber(out)
	res.Segments = out
	return res, nil
}

// fallbackSegments regroups words[from..to] by their original segmentation.
func fallbackSegments(original []transcript.Segment, words []transcript.Word, wordSeg []int, from, to int) []transcript.Segment {
	var out []transcript.Segment
	start := from
	for start <= to {
		segIdx := wordSeg[start]
		end := start
		for end+1 <= to && wordSeg[end+1] == segIdx {
			end++
		}
		source := original[segIdx]
		text := transcript.JoinWords(words[start : end+1])
		if end-start+1 == len(source.Words) {
			text = source.Text
		}
		seg := transcript.NewSegment(0, words[start:end+1], text)
		seg.Speaker = source.Speaker
		seg.RefinementPartial = true
		out = append(out, seg)
		start = end + 1
	}
	return out
}

// lcsIndices returns the window positions of one longest common subsequence
// between the proposal tokens and the window token refs, in ascending order.
// Matches pair with the earliest possible window positions so that repeated
// phrases leave later occurrences for later proposals, and the walk is
// deterministic so repeated calls produce identical anchors.
func lcsIndices(tokens []string, window []tokenRef) []int {
	m, n := len(tokens), len(window)
	if m == 0 || n == 0 {
		return nil
	}
	// dp[i][j] is the LCS length of tokens[i:] and window[j:].
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if tokens[i] == window[j].token {
				dp[i][j] = dp[i+1][j+1] + 1
				continue
			}
			if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	if dp[0][0] == 0 {
		return nil
	}
	matched := make([]int, 0, dp[0][0])
	i, j := 0, 0
	for i < m && j < n {
		if tokens[i] == window[j].token {
			matched = append(matched, j)
			i++
			j++
			continue
		}
		if dp[i+1][j] >= dp[i][j+1] {
			i++
		} else {
			j++
		}
	}
	return matched
}
