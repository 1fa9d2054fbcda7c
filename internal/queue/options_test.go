package queue

import (
	"errors"
	"testing"

	"murmur/internal/config"
	"murmur/internal/services"
)

func TestOptionsFromConfigSnapshotsDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.ASR.Language = "en"
	cfg.Refinement.TranslateTo = "fr"
	cfg.Output.Formats = []string{"JSON", "srt", "json"}

	opts := OptionsFromConfig(&cfg)
	if opts.LanguageHint != "en" {
		t.Fatalf("expected language hint en, got %q", opts.LanguageHint)
	}
	if opts.TranslateTo != "fr" {
		t.Fatalf("expected translate_to fr, got %q", opts.TranslateTo)
	}
	if len(opts.Formats) != 2 || opts.Formats[0] != "json" || opts.Formats[1] != "srt" {
		t.Fatalf("expected normalized formats [json srt], got %v", opts.Formats)
	}
	if !opts.Diarize || !opts.Refine || !opts.SpeakerPrefix || !opts.IncludeWords {
		t.Fatalf("expected defaults carried into snapshot, got %#v", opts)
	}
}

func TestOptionsValidate(t *testing.T) {
	valid := Options{Formats: []string{"json"}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid options, got %v", err)
	}

	cases := []struct {
		name string
		opts Options
	}{
		{"no formats", Options{}},
		{"unknown format", Options{Formats: []string{"ass"}}},
		{"unknown language hint", Options{Formats: []string{"json"}, LanguageHint: "xx"}},
		{"unknown translation target", Options{Formats: []string{"json"}, TranslateTo: "klingon"}},
		{"negative speakers", Options{Formats: []string{"json"}, MinSpeakers: -1}},
		{"inverted speaker bounds", Options{Formats: []string{"json"}, MinSpeakers: 3, MaxSpeakers: 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.opts.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected configuration marker, got %v", err)
			}
		})
	}
}

func TestOptionsValidateAcceptsOpenSpeakerBounds(t *testing.T) {
	// A pinned minimum with an unbounded maximum is a normal configuration.
	opts := Options{Formats: []string{"json"}, MinSpeakers: 2}
	if err := opts.Validate(); err != nil {
		t.Fatalf("expected open max bound accepted, got %v", err)
	}
}

func TestOptionsRoundTrip(t *testing.T) {
	opts := Options{
		LanguageHint: "de",
		Diarize:      true,
		MinSpeakers:  2,
		MaxSpeakers:  4,
		Refine:       true,
		TranslateTo:  "en",
		Formats:      []string{"json", "vtt"},
	}
	encoded, err := opts.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := ParseOptions(encoded)
	if err != nil {
		t.Fatalf("ParseOptions failed: %v", err)
	}
	if decoded.LanguageHint != "de" || decoded.MinSpeakers != 2 || decoded.MaxSpeakers != 4 {
		t.Fatalf("unexpected decoded options: %#v", decoded)
	}
	if len(decoded.Formats) != 2 || decoded.Formats[1] != "vtt" {
		t.Fatalf("unexpected formats: %v", decoded.Formats)
	}
}

func TestParseOptionsRejectsMalformed(t *testing.T) {
	if _, err := ParseOptions("{not json"); err == nil {
		t.Fatal("expected error for malformed options")
	}
	opts, err := ParseOptions("   ")
	if err != nil {
		t.Fatalf("expected blank input accepted, got %v", err)
	}
	if opts.Diarize || len(opts.Formats) != 0 {
		t.Fatalf("expected zero snapshot for blank input, got %#v", opts)
	}
}

func TestNormalizeFormats(t *testing.T) {
	got := NormalizeFormats([]string{" SRT ", "json", "srt", "", "VTT"})
	want := []string{"srt", "json", "vtt"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
