package config

import (
	"errors"
	"fmt"
	"strings"

	"murmur/internal/language"
	"murmur/internal/transcript"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateASR(); err != nil {
		return err
	}
	if err := c.validateDiarization(); err != nil {
		return err
	}
	if err := c.validateRefinement(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateASR() error {
	if strings.TrimSpace(c.ASR.BaseURL) == "" {
		return errors.New("asr.base_url must be set")
	}
	if c.ASR.Language != "" && !language.Known(c.ASR.Language) {
		return fmt.Errorf("asr.language %q is not a recognized language", c.ASR.Language)
	}
	return nil
}

func (c *Config) validateDiarization() error {
	if !c.Diarization.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Diarization.BaseURL) == "" {
		return errors.New("diarization.base_url must be set when diarization.enabled is true")
	}
	if c.Diarization.MinSpeakers > 0 && c.Diarization.MaxSpeakers > 0 &&
		c.Diarization.MinSpeakers > c.Diarization.MaxSpeakers {
		return errors.New("diarization.min_speakers must not exceed diarization.max_speakers")
	}
	return nil
}

func (c *Config) validateRefinement() error {
	if c.Refinement.AnchorThreshold <= 0 || c.Refinement.AnchorThreshold > 1 {
		return errors.New("refinement.anchor_threshold must be in (0, 1]")
	}
	if c.Refinement.TranslateTo != "" && !language.Known(c.Refinement.TranslateTo) {
		return fmt.Errorf("refinement.translate_to %q is not a recognized language", c.Refinement.TranslateTo)
	}
	if !c.Refinement.Enabled {
		return nil
	}
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		return errors.New("llm.base_url must be set when refinement.enabled is true")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model must be set when refinement.enabled is true")
	}
	return nil
}

func (c *Config) validateOutput() error {
	if len(c.Output.Formats) == 0 {
		return errors.New("output.formats must include at least one format")
	}
	for _, format := range c.Output.Formats {
		if !transcript.KnownFormat(format) {
			return fmt.Errorf("output.formats contains unknown format %q", format)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers < 1 {
		return errors.New("workflow.workers must be >= 1")
	}
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.decode_timeout":       c.Workflow.DecodeTimeout,
		"workflow.transcribe_timeout":   c.Workflow.TranscribeTimeout,
		"workflow.align_timeout":        c.Workflow.AlignTimeout,
		"workflow.diarize_timeout":      c.Workflow.DiarizeTimeout,
		"workflow.refine_timeout":       c.Workflow.RefineTimeout,
		"workflow.encode_timeout":       c.Workflow.EncodeTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if strings.TrimSpace(c.Notifications.NtfyTopic) != "" {
		if !strings.HasPrefix(c.Notifications.NtfyTopic, "http://") && !strings.HasPrefix(c.Notifications.NtfyTopic, "https://") {
			return errors.New("notifications.ntfy_topic must be a full URL (e.g. https://ntfy.sh/your-topic)")
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
