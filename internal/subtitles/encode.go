package subtitles

import (
	"encoding/json"
	"fmt"
	"strings"

	"murmur/internal/transcript"
)

// Options adjust rendering of the timed-text formats.
type Options struct {
	// SpeakerPrefix labels each cue with its speaker when one is attributed.
	SpeakerPrefix bool
	// IncludeWords keeps per-word timing in the JSON artifact. The timed-text
	// formats never carry words.
	IncludeWords bool
}

// Document is the full-fidelity JSON artifact schema.
type Document struct {
	Title    string               `json:"title,omitempty"`
	Language string               `json:"language,omitempty"`
	Duration float64              `json:"duration,omitempty"`
	Speakers []string             `json:"speakers,omitempty"`
	Segments []transcript.Segment `json:"segments"`
}

// EncodeJSON renders the document as indented JSON with a trailing newline.
func EncodeJSON(doc Document, opts Options) ([]byte, error) {
	doc.Segments = transcript.CloneSegments(doc.Segments)
	if !opts.IncludeWords {
		for i := range doc.Segments {
			doc.Segments[i].Words = nil
		}
	}
	if doc.Segments == nil {
		doc.Segments = []transcript.Segment{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return append(data, '\n'), nil
}

// EncodeSRT renders segments as SubRip cues numbered from 1. Segments with
// empty text are skipped so the output stays parseable.
func EncodeSRT(segments []transcript.Segment, opts Options) []byte {
	var sb strings.Builder
	index := 0
	for _, seg := range segments {
		text := cueText(seg, opts)
		if text == "" {
			continue
		}
		if index > 0 {
			sb.WriteString("\n")
		}
		index++
		fmt.Fprintf(&sb, "%d\n", index)
		fmt.Fprintf(&sb, "%s --> %s\n", formatSRTTimestamp(seg.Start), formatSRTTimestamp(seg.End))
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

// EncodeVTT renders segments as WebVTT cues. Speakers use native voice tags
// so players can style per speaker.
func EncodeVTT(segments []transcript.Segment, opts Options) []byte {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n")
	index := 0
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if opts.SpeakerPrefix && seg.Speaker != "" {
			text = fmt.Sprintf("<v %s>%s</v>", seg.Speaker, text)
		}
		if translation := strings.TrimSpace(seg.TranslatedText); translation != "" {
			text += "\n" + translation
		}
		index++
		fmt.Fprintf(&sb, "\n%d\n", index)
		fmt.Fprintf(&sb, "%s --> %s\n", formatVTTTimestamp(seg.Start), formatVTTTimestamp(seg.End))
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

// Render dispatches one format to its encoder.
func Render(format string, doc Document, opts Options) ([]byte, error) {
	switch format {
	case transcript.FormatJSON:
		return EncodeJSON(doc, opts)
	case transcript.FormatSRT:
		return EncodeSRT(doc.Segments, opts), nil
	case transcript.FormatVTT:
		return EncodeVTT(doc.Segments, opts), nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// cueText builds the SRT cue body: optional speaker prefix, then the
// translation on its own line when present.
func cueText(seg transcript.Segment, opts Options) string {
	text := strings.TrimSpace(seg.Text)
	if text == "" {
		return ""
	}
	if opts.SpeakerPrefix && seg.Speaker != "" {
		text = seg.Speaker + ": " + text
	}
	if translation := strings.TrimSpace(seg.TranslatedText); translation != "" {
		text += "\n" + translation
	}
	return text
}

func formatSRTTimestamp(seconds float64) string {
	return formatTimestamp(seconds, ',')
}

func formatVTTTimestamp(seconds float64) string {
	return formatTimestamp(seconds, '.')
}

func formatTimestamp(seconds float64, sep byte) string {
	if seconds < 0 {
		seconds = 0
	}
	msTotal := int(seconds*1000 + 0.5)
	hours := msTotal / 3_600_000
	msTotal %= 3_600_000
	minutes := msTotal / 60_000
	msTotal %= 60_000
	secs := msTotal / 1_000
	millis := msTotal % 1_000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, secs, sep, millis)
}
