package config

import (
	"fmt"
	"os"
	"strings"

	"murmur/internal/language"
	"murmur/internal/transcript"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeASR()
	c.normalizeDiarization()
	c.normalizeRefinement()
	c.normalizeLLM()
	c.normalizeOutput()
	if err := c.normalizeIngest(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("MURMUR_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeASR() {
	c.ASR.BaseURL = strings.TrimRight(strings.TrimSpace(c.ASR.BaseURL), "/")
	if c.ASR.BaseURL == "" {
		c.ASR.BaseURL = defaultASRBaseURL
	}
	c.ASR.Model = strings.TrimSpace(c.ASR.Model)
	if c.ASR.Model == "" {
		c.ASR.Model = defaultASRModel
	}
	if hint := language.ToISO2(c.ASR.Language); hint != "" {
		c.ASR.Language = hint
	} else {
		c.ASR.Language = strings.ToLower(strings.TrimSpace(c.ASR.Language))
	}
}

func (c *Config) normalizeDiarization() {
	c.Diarization.BaseURL = strings.TrimRight(strings.TrimSpace(c.Diarization.BaseURL), "/")
	if c.Diarization.BaseURL == "" {
		c.Diarization.BaseURL = defaultDiarizerBaseURL
	}
	if c.Diarization.MinSpeakers < 0 {
		c.Diarization.MinSpeakers = 0
	}
	if c.Diarization.MaxSpeakers < 0 {
		c.Diarization.MaxSpeakers = 0
	}
}

func (c *Config) normalizeRefinement() {
	if normalized := language.ToISO2(c.Refinement.TranslateTo); normalized != "" {
		c.Refinement.TranslateTo = normalized
	} else {
		c.Refinement.TranslateTo = strings.ToLower(strings.TrimSpace(c.Refinement.TranslateTo))
	}
	if c.Refinement.AnchorThreshold == 0 {
		c.Refinement.AnchorThreshold = defaultAnchorThreshold
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("MURMUR_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("DEEPSEEK_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeOutput() {
	if len(c.Output.Formats) == 0 {
		c.Output.Formats = []string{transcript.FormatJSON, transcript.FormatSRT}
		return
	}
	formats := make([]string, 0, len(c.Output.Formats))
	seen := make(map[string]struct{}, len(c.Output.Formats))
	for _, format := range c.Output.Formats {
		normalized := strings.ToLower(strings.TrimSpace(format))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		formats = append(formats, normalized)
	}
	if len(formats) == 0 {
		formats = []string{transcript.FormatJSON, transcript.FormatSRT}
	}
	c.Output.Formats = formats
}

func (c *Config) normalizeIngest() error {
	c.Ingest.WatchDir = strings.TrimSpace(c.Ingest.WatchDir)
	if c.Ingest.WatchDir != "" {
		expanded, err := expandPath(c.Ingest.WatchDir)
		if err != nil {
			return fmt.Errorf("ingest.watch_dir: %w", err)
		}
		c.Ingest.WatchDir = expanded
	}
	if c.Ingest.SettleSeconds <= 0 {
		c.Ingest.SettleSeconds = defaultIngestSettle
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
