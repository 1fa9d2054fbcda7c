package transcript

import (
	"encoding/json"
	"slices"
	"strings"
)

// Output format identifiers accepted by task options and rendered by the
// encoding stage.
const (
	FormatJSON = "json"
	FormatSRT  = "srt"
	FormatVTT  = "vtt"
)

// Formats lists every known output format in canonical order.
func Formats() []string {
	return []string{FormatJSON, FormatSRT, FormatVTT}
}

// KnownFormat reports whether format names a supported output encoding.
func KnownFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON, FormatSRT, FormatVTT:
		return true
	}
	return false
}

// Envelope carries every stage's persisted output for one task. It is stored
// as JSON on the queue row and written back after each stage, so a restart
// resumes from the last completed stage instead of re-running the pipeline.
type Envelope struct {
	Decode     *DecodeResult     `json:"decode,omitempty"`
	Transcribe *TranscribeResult `json:"transcribe,omitempty"`
	Align      *AlignResult      `json:"align,omitempty"`
	Diarize    *DiarizeResult    `json:"diarize,omitempty"`
	Refine     *RefineResult     `json:"refine,omitempty"`
	Encode     *EncodeResult     `json:"encode,omitempty"`
	Final      []Segment         `json:"final,omitempty"`
}

// DecodeResult records the audio artifact extracted from the source media.
type DecodeResult struct {
	AudioPath  string  `json:"audio_path"`
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sample_rate,omitempty"`
	Channels   int     `json:"channels,omitempty"`
}

// RawSegment is an unaligned transcription span as returned by the ASR
// collaborator before forced alignment.
type RawSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscribeResult records the raw transcription output and the detected or
// pinned language.
type TranscribeResult struct {
	Language string       `json:"language"`
	Segments []RawSegment `json:"segments"`
}

// AlignResult records word-aligned segments prior to speaker attribution.
type AlignResult struct {
	Segments []Segment `json:"segments"`
}

// DiarizeResult records the speaker turns and the speaker-attributed
// segments built from them.
type DiarizeResult struct {
	Turns    []SpeakerTurn `json:"turns,omitempty"`
	Segments []Segment     `json:"segments"`
}

// RefineResult records the LLM-refined, re-anchored segments.
type RefineResult struct {
	Segments []Segment `json:"segments"`
}

// Artifact is one encoded output file, or the error that prevented it.
type Artifact struct {
	Format string `json:"format"`
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
}

// EncodeResult records per-format encoding outcomes. Formats succeed and
// fail independently.
type EncodeResult struct {
	Artifacts []Artifact `json:"artifacts"`
}

// Succeeded returns the artifacts that produced an output file.
func (r EncodeResult) Succeeded() []Artifact {
	out := make([]Artifact, 0, len(r.Artifacts))
	for _, a := range r.Artifacts {
		if a.Error == "" && a.Path != "" {
			out = append(out, a)
		}
	}
	return out
}

// Failed returns the artifacts that recorded an error.
func (r EncodeResult) Failed() []Artifact {
	out := make([]Artifact, 0, len(r.Artifacts))
	for _, a := range r.Artifacts {
		if a.Error != "" {
			out = append(out, a)
		}
	}
	return out
}

// Parse loads an envelope from JSON, returning an empty envelope on blank
// input. Slices are cloned so callers never alias persisted state.
func Parse(raw string) (Envelope, error) {
	var env Envelope
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return env, nil
	}
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Envelope{}, err
	}
	if env.Transcribe != nil {
		env.Transcribe.Segments = slices.Clone(env.Transcribe.Segments)
	}
	if env.Align != nil {
		env.Align.Segments = CloneSegments(env.Align.Segments)
	}
	if env.Diarize != nil {
		env.Diarize.Turns = slices.Clone(env.Diarize.Turns)
		env.Diarize.Segments = CloneSegments(env.Diarize.Segments)
	}
	if env.Refine != nil {
		env.Refine.Segments = CloneSegments(env.Refine.Segments)
	}
	if env.Encode != nil {
		env.Encode.Artifacts = slices.Clone(env.Encode.Artifacts)
	}
	env.Final = CloneSegments(env.Final)
	return env, nil
}

// Marshal serialises the envelope to JSON for persistence.
func (e Envelope) Marshal() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Summary condenses a completed transcript for status views and
// notifications.
type Summary struct {
	Language     string   `json:"language,omitempty"`
	Duration     float64  `json:"duration,omitempty"`
	Speakers     []string `json:"speakers,omitempty"`
	SegmentCount int      `json:"segment_count"`
}

// Summarize derives a summary from the envelope's final segments plus the
// recorded language and media duration.
func (e Envelope) Summarize() Summary {
	sum := Summary{SegmentCount: len(e.Final), Speakers: Speakers(e.Final)}
	if e.Transcribe != nil {
		sum.Language = e.Transcribe.Language
	}
	if e.Decode != nil {
		sum.Duration = e.Decode.Duration
	}
	return sum
}
