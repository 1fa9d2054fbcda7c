package subtitles

import (
	"bytes"
	"encoding/json"
	"testing"

	"murmur/internal/transcript"
)

func sampleSegments() []transcript.Segment {
	return []transcript.Segment{
		{
			ID: 1, Start: 0, End: 2.5, Text: "Hi there.", Speaker: "SPEAKER_00",
			Words: []transcript.Word{
				{Text: "Hi", Start: 0, End: 1.0, Confidence: 0.9},
				{Text: "there", Start: 1.0, End: 2.5, Confidence: 0.8},
			},
			Confidence: 0.85,
		},
		{ID: 2, Start: 2.5, End: 5.0, Text: "All good."},
	}
}

func TestEncodeSRT(t *testing.T) {
	got := string(EncodeSRT(sampleSegments(), Options{SpeakerPrefix: true}))
	want := "1\n" +
		"00:00:00,000 --> 00:00:02,500\n" +
		"SPEAKER_00: Hi there.\n" +
		"\n" +
		"2\n" +
		"00:00:02,500 --> 00:00:05,000\n" +
		"All good.\n"
	if got != want {
		t.Errorf("EncodeSRT() = %q, want %q", got, want)
	}
}

func TestEncodeSRTWithoutSpeakerPrefix(t *testing.T) {
	got := string(EncodeSRT(sampleSegments(), Options{}))
	if bytes.Contains([]byte(got), []byte("SPEAKER_00")) {
		t.Errorf("speaker leaked into cue text: %q", got)
	}
}

func TestEncodeSRTSkipsEmptySegments(t *testing.T) {
	segments := []transcript.Segment{
		{ID: 1, Start: 0, End: 1, Text: "First."},
		{ID: 2, Start: 1, End: 2, Text: "   "},
		{ID: 3, Start: 2, End: 3, Text: "Third."},
	}
	got := string(EncodeSRT(segments, Options{}))
	want := "1\n" +
		"00:00:00,000 --> 00:00:01,000\n" +
		"First.\n" +
		"\n" +
		"2\n" +
		"00:00:02,000 --> 00:00:03,000\n" +
		"Third.\n"
	if got != want {
		t.Errorf("EncodeSRT() = %q, want renumbered %q", got, want)
	}
}

func TestEncodeSRTBilingual(t *testing.T) {
	segments := []transcript.Segment{
		{ID: 1, Start: 0, End: 1.5, Text: "Hi there.", TranslatedText: "Salut."},
	}
	got := string(EncodeSRT(segments, Options{}))
	want := "1\n" +
		"00:00:00,000 --> 00:00:01,500\n" +
		"Hi there.\n" +
		"Salut.\n"
	if got != want {
		t.Errorf("EncodeSRT() = %q, want %q", got, want)
	}
}

func TestEncodeVTT(t *testing.T) {
	got := string(EncodeVTT(sampleSegments(), Options{SpeakerPrefix: true}))
	want := "WEBVTT\n" +
		"\n" +
		"1\n" +
		"00:00:00.000 --> 00:00:02.500\n" +
		"<v SPEAKER_00>Hi there.</v>\n" +
		"\n" +
		"2\n" +
		"00:00:02.500 --> 00:00:05.000\n" +
		"All good.\n"
	if got != want {
		t.Errorf("EncodeVTT() = %q, want %q", got, want)
	}
}

func TestEncodeJSON(t *testing.T) {
	doc := Document{
		Title:    "Weekly Sync",
		Language: "en",
		Duration: 5.0,
		Speakers: []string{"SPEAKER_00"},
		Segments: sampleSegments(),
	}

	full, err := EncodeJSON(doc, Options{IncludeWords: true})
	if err != nil {
		t.Fatalf("EncodeJSON() error = %v", err)
	}
	var decoded Document
	if err := json.Unmarshal(full, &decoded); err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if decoded.Title != "Weekly Sync" || decoded.Language != "en" {
		t.Errorf("metadata = %q/%q", decoded.Title, decoded.Language)
	}
	if len(decoded.Segments) != 2 {
		t.Fatalf("len(Segments) = %d, want 2", len(decoded.Segments))
	}
	if len(decoded.Segments[0].Words) != 2 {
		t.Errorf("len(Words) = %d, want 2 with IncludeWords", len(decoded.Segments[0].Words))
	}

	lean, err := EncodeJSON(doc, Options{})
	if err != nil {
		t.Fatalf("EncodeJSON() error = %v", err)
	}
	decoded = Document{}
	if err := json.Unmarshal(lean, &decoded); err != nil {
		t.Fatalf("decode lean artifact: %v", err)
	}
	if len(decoded.Segments[0].Words) != 0 {
		t.Errorf("words present without IncludeWords")
	}
	if len(doc.Segments[0].Words) != 2 {
		t.Error("EncodeJSON() stripped words from the caller's segments")
	}
}

func TestEncodeJSONDeterministic(t *testing.T) {
	doc := Document{Language: "en", Segments: sampleSegments()}
	first, err := EncodeJSON(doc, Options{IncludeWords: true})
	if err != nil {
		t.Fatalf("EncodeJSON() error = %v", err)
	}
	second, err := EncodeJSON(doc, Options{IncludeWords: true})
	if err != nil {
		t.Fatalf("EncodeJSON() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("repeated encodings differ")
	}
}

func TestEncodeJSONEmptySegments(t *testing.T) {
	data, err := EncodeJSON(Document{}, Options{})
	if err != nil {
		t.Fatalf("EncodeJSON() error = %v", err)
	}
	if !bytes.Contains(data, []byte(`"segments": []`)) {
		t.Errorf("empty transcript should encode an empty array, got %s", data)
	}
}

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		seconds float64
		srt     string
		vtt     string
	}{
		{0, "00:00:00,000", "00:00:00.000"},
		{2.5, "00:00:02,500", "00:00:02.500"},
		{0.9996, "00:00:01,000", "00:00:01.000"},
		{3661.5004, "01:01:01,500", "01:01:01.500"},
		{-3, "00:00:00,000", "00:00:00.000"},
	}
	for _, tc := range cases {
		if got := formatSRTTimestamp(tc.seconds); got != tc.srt {
			t.Errorf("formatSRTTimestamp(%v) = %q, want %q", tc.seconds, got, tc.srt)
		}
		if got := formatVTTTimestamp(tc.seconds); got != tc.vtt {
			t.Errorf("formatVTTTimestamp(%v) = %q, want %q", tc.seconds, got, tc.vtt)
		}
	}
}
