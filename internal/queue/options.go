package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	"murmur/internal/config"
	"murmur/internal/language"
	"murmur/internal/services"
	"murmur/internal/transcript"
)

// Options is the per-task settings snapshot captured at submission time.
// Unset fields inherit daemon config defaults via OptionsFromConfig; after
// submission the snapshot is immutable so a task's behaviour never shifts
// under a config reload.
type Options struct {
	LanguageHint           string   `json:"language_hint,omitempty"`
	Diarize                bool     `json:"diarize"`
	MinSpeakers            int      `json:"min_speakers,omitempty"`
	MaxSpeakers            int      `json:"max_speakers,omitempty"`
	Refine                 bool     `json:"refine"`
	SemanticSegmentation   bool     `json:"semantic_segmentation,omitempty"`
	ErrorCorrection        bool     `json:"error_correction,omitempty"`
	ExpressionOptimization bool     `json:"expression_optimization,omitempty"`
	TranslateTo            string   `json:"translate_to,omitempty"`
	Formats                []string `json:"formats"`
	SpeakerPrefix          bool     `json:"speaker_prefix"`
	IncludeWords           bool     `json:"include_words"`
}

// OptionsFromConfig captures the daemon defaults as a task options snapshot.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{Formats: []string{transcript.FormatJSON}}
	}
	return Options{
		LanguageHint:           strings.TrimSpace(cfg.ASR.Language),
		Diarize:                cfg.Diarization.Enabled,
		MinSpeakers:            cfg.Diarization.MinSpeakers,
		MaxSpeakers:            cfg.Diarization.MaxSpeakers,
		Refine:                 cfg.Refinement.Enabled,
		SemanticSegmentation:   cfg.Refinement.SemanticSegmentation,
		ErrorCorrection:        cfg.Refinement.ErrorCorrection,
		ExpressionOptimization: cfg.Refinement.ExpressionOptimization,
		TranslateTo:            strings.TrimSpace(cfg.Refinement.TranslateTo),
		Formats:                NormalizeFormats(cfg.Output.Formats),
		SpeakerPrefix:          cfg.Output.SpeakerPrefix,
		IncludeWords:           cfg.Output.IncludeWords,
	}
}

// ParseOptions decodes an options snapshot from its stored JSON form. Blank
// input yields the zero snapshot; malformed input is an error rather than a
// silent fallback, because zero-valued flags would quietly skip stages.
func ParseOptions(data string) (Options, error) {
	var opts Options
	data = strings.TrimSpace(data)
	if data == "" {
		return opts, nil
	}
	if err := json.Unmarshal([]byte(data), &opts); err != nil {
		return Options{}, fmt.Errorf("parse task options: %w", err)
	}
	return opts, nil
}

// Options decodes the task's stored options snapshot.
func (t *Task) Options() (Options, error) {
	return ParseOptions(t.OptionsJSON)
}

// Encode serialises the snapshot to JSON for persistence.
func (o Options) Encode() (string, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("marshal task options: %w", err)
	}
	return string(data), nil
}

// Validate rejects option combinations the pipeline cannot honor. Violations
// carry the configuration marker so submissions fail before any stage runs.
func (o Options) Validate() error {
	if len(o.Formats) == 0 {
		return services.Wrap(services.ErrConfiguration, "queue", "validate options", "No output formats requested", nil)
	}
	for _, format := range o.Formats {
		if !transcript.KnownFormat(format) {
			return services.Wrap(services.ErrConfiguration, "queue", "validate options",
				fmt.Sprintf("Unknown output format %q", format), nil)
		}
	}
	if o.LanguageHint != "" && !language.Known(o.LanguageHint) {
		return services.Wrap(services.ErrConfiguration, "queue", "validate options",
			fmt.Sprintf("Unknown language hint %q", o.LanguageHint), nil)
	}
	if o.TranslateTo != "" && !language.Known(o.TranslateTo) {
		return services.Wrap(services.ErrConfiguration, "queue", "validate options",
			fmt.Sprintf("Unknown translation language %q", o.TranslateTo), nil)
	}
	if o.MinSpeakers < 0 || o.MaxSpeakers < 0 {
		return services.Wrap(services.ErrConfiguration, "queue", "validate options", "Speaker bounds must not be negative", nil)
	}
	if o.MinSpeakers > 0 && o.MaxSpeakers > 0 && o.MinSpeakers > o.MaxSpeakers {
		return services.Wrap(services.ErrConfiguration, "queue", "validate options",
			fmt.Sprintf("min_speakers %d exceeds max_speakers %d", o.MinSpeakers, o.MaxSpeakers), nil)
	}
	return nil
}

// NormalizeFormats lowercases, trims, and deduplicates a format list while
// preserving the caller's order.
func NormalizeFormats(formats []string) []string {
	out := make([]string, 0, len(formats))
	seen := make(map[string]struct{}, len(formats))
	for _, format := range formats {
		format = strings.ToLower(strings.TrimSpace(format))
		if format == "" {
			continue
		}
		if _, ok := seen[format]; ok {
			continue
		}
		seen[format] = struct{}{}
		out = append(out, format)
	}
	return out
}
