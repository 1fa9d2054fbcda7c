package transcript

import (
	"slices"
	"sort"
	"strings"
)

// Word is a single recognized token with its aligned time span. Words are
// produced by the transcription and alignment stages and never mutated
// afterwards; later stages build new segments that reference the original
// word values, so the acoustic timestamps stay auditable.
type Word struct {
	Text       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Duration returns the word's time span in seconds.
func (w Word) Duration() float64 {
	if w.End < w.Start {
		return 0
	}
	return w.End - w.Start
}

// SpeakerTurn is one diarization interval attributed to a single speaker.
// Turns for a task are sorted by start and normally pairwise non-overlapping;
// overlaps are a diarization artifact handled deterministically downstream.
type SpeakerTurn struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Duration returns the turn's time span in seconds.
func (t SpeakerTurn) Duration() float64 {
	if t.End < t.Start {
		return 0
	}
	return t.End - t.Start
}

// Segment is one subtitle-sized span of the transcript. Start and End equal
// the first and last word timestamps whenever Words is non-empty. Speaker is
// empty when no speaker could be attributed. RefinementPartial marks a
// segment whose refined text could not be fully traced back to source words.
type Segment struct {
	ID                int     `json:"id"`
	Start             float64 `json:"start"`
	End               float64 `json:"end"`
	Text              string  `json:"text"`
	Speaker           string  `json:"speaker,omitempty"`
	Words             []Word  `json:"words,omitempty"`
	Confidence        float64 `json:"confidence"`
	TranslatedText    string  `json:"translated_text,omitempty"`
	RefinementPartial bool    `json:"refinement_partial,omitempty"`
}

// Duration returns the segment's time span in seconds.
func (s Segment) Duration() float64 {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// NewSegment builds a segment over words, deriving the span from the first
// and last word and the confidence from the word mean. Text may differ from
// the concatenated words (refined text); when empty it falls back to joining
// the words.
func NewSegment(id int, words []Word, text string) Segment {
	seg := Segment{ID: id, Text: strings.TrimSpace(text), Words: slices.Clone(words)}
	if seg.Text == "" {
		seg.Text = JoinWords(seg.Words)
	}
	if len(seg.Words) > 0 {
		seg.Start = seg.Words[0].Start
		seg.End = seg.Words[len(seg.Words)-1].End
		seg.Confidence = MeanConfidence(seg.Words)
	}
	return seg
}

// NewSpanSegment builds a wordless segment over an explicit time span. Used
// for transcription spans that produced no aligned words.
func NewSpanSegment(id int, start, end float64, text string) Segment {
	if end < start {
		end = start
	}
	return Segment{ID: id, Start: start, End: end, Text: strings.TrimSpace(text)}
}

// JoinWords concatenates word text with single spaces.
func JoinWords(words []Word) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if trimmed := strings.TrimSpace(w.Text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

// MeanConfidence averages word confidences, zero for no words.
func MeanConfidence(words []Word) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}

// Renumber rewrites segment IDs sequentially from 1 in slice order.
func Renumber(segments []Segment) {
	for i := range segments {
		segments[i].ID = i + 1
	}
}

// SortSegments orders segments by start time, breaking ties by ID.
func SortSegments(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].Start != segments[j].Start {
			return segments[i].Start < segments[j].Start
		}
		return segments[i].ID < segments[j].ID
	})
}

// Speakers returns the distinct non-empty speaker labels in ascending order.
func Speakers(segments []Segment) []string {
	seen := make(map[string]struct{}, 4)
	for _, seg := range segments {
		if seg.Speaker != "" {
			seen[seg.Speaker] = struct{}{}
		}
	}
	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// CloneSegments deep-copies segments including their word slices.
func CloneSegments(segments []Segment) []Segment {
	if segments == nil {
		return nil
	}
	out := make([]Segment, len(segments))
	for i, seg := range segments {
		out[i] = seg
		out[i].Words = slices.Clone(seg.Words)
	}
	return out
}

// FlattenWords concatenates every segment's words in order.
func FlattenWords(segments []Segment) []Word {
	var words []Word
	for _, seg := range segments {
		words = append(words, seg.Words...)
	}
	return words
}
