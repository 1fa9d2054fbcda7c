package diarization

import (
	"math"
	"sort"

	"murmur/internal/transcript"
)

// Stats summarizes one merge pass for stage logging.
type Stats struct {
	Words        int
	Attributed   int
	Speakers     int
	TurnOverlaps int
}

// AssignSpeakers returns one speaker label per word, "" when no turn overlaps
// the word. Each word takes the speaker of the turn with the longest overlap,
// ties resolving to the turn that starts earliest. Words and turns must both
// be sorted by start time; the sweep advances a single turn cursor so the
// whole pass stays near linear. A positive-width word that merely touches a
// turn boundary carries no overlap and stays unattributed; a zero-width word
// takes the earliest turn containing its instant.
func AssignSpeakers(words []transcript.Word, turns []transcript.SpeakerTurn) []string {
	labels := make([]string, len(words))
	if len(words) == 0 || len(turns) == 0 {
		return labels
	}
	cursor := 0
	for i, word := range words {
		for cursor < len(turns) && turns[cursor].End < word.Start {
			cursor++
		}
		var (
			best        string
			bestOverlap float64
			bestStart   float64
			found       bool
		)
		for j := cursor; j < len(turns) && turns[j].Start <= word.End; j++ {
			turn := turns[j]
			overlap := min(word.End, turn.End) - max(word.Start, turn.Start)
			if overlap <= 0 && word.End > word.Start {
				continue
			}
			if !found || overlap > bestOverlap || (overlap == bestOverlap && turn.Start < bestStart) {
				best = turn.Speaker
				bestOverlap = overlap
				bestStart = turn.Start
				found = true
			}
		}
		if found {
			labels[i] = best
		}
	}
	return labels
}

// SegmentSpeaker picks a segment's speaker by duration-weighted majority over
// the per-word labels. Ties resolve to the tied label appearing earliest in
// the word order; a segment with no attributed words returns "".
func SegmentSpeaker(words []transcript.Word, labels []string) string {
	totals := make(map[string]float64)
	for i := range words {
		if i >= len(labels) {
			break
		}
		label := labels[i]
		if label == "" {
			continue
		}
		totals[label] += words[i].Duration()
	}
	if len(totals) == 0 {
		return ""
	}
	best := math.Inf(-1)
	for _, total := range totals {
		if total > best {
			best = total
		}
	}
	tied := make(map[string]struct{}, 1)
	for label, total := range totals {
		if total == best {
			tied[label] = struct{}{}
		}
	}
	if len(tied) == 1 {
		for label := range tied {
			return label
		}
	}
	for i := range words {
		if i >= len(labels) {
			break
		}
		if _, ok := tied[labels[i]]; ok {
			return labels[i]
		}
	}
	return ""
}

// CountTurnOverlaps reports how many turns begin before an earlier turn ends.
// Diarization output is supposed to be non-overlapping, so a nonzero count is
// a data error the caller should log before merging; the merge itself handles
// overlaps deterministically.
func CountTurnOverlaps(turns []transcript.SpeakerTurn) int {
	count := 0
	maxEnd := math.Inf(-1)
	for i, turn := range turns {
		if i > 0 && turn.Start < maxEnd {
			count++
		}
		if turn.End > maxEnd {
			maxEnd = turn.End
		}
	}
	return count
}

// Apply attributes every segment using the supplied turns and returns new
// segment values in the same order; input segments and their words are never
// modified. Turns are re-sorted before the sweep to tolerate unsorted service
// responses.
func Apply(segments []transcript.Segment, turns []transcript.SpeakerTurn) ([]transcript.Segment, Stats) {
	sorted := append([]transcript.SpeakerTurn(nil), turns...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	words := transcript.FlattenWords(segments)
	labels := AssignSpeakers(words, sorted)

	stats := Stats{Words: len(words), TurnOverlaps: CountTurnOverlaps(sorted)}
	seen := make(map[string]struct{})
	for _, label := range labels {
		if label == "" {
			continue
		}
		stats.Attributed++
		seen[label] = struct{}{}
	}
	stats.Speakers = len(seen)

	out := transcript.CloneSegments(segments)
	cursor := 0
	for i := range out {
		n := len(out[i].Words)
		out[i].Speaker = SegmentSpeaker(out[i].Words, labels[cursor:cursor+n])
		cursor += n
	}
	return out, stats
}
