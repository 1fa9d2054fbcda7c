package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
}

// API contains the daemon HTTP API settings.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// ASR contains configuration for the transcription and alignment service.
type ASR struct {
	BaseURL  string `toml:"base_url"`
	Model    string `toml:"model"`
	Language string `toml:"language"`
}

// Diarization contains configuration for the speaker diarization service.
type Diarization struct {
	Enabled     bool   `toml:"enabled"`
	BaseURL     string `toml:"base_url"`
	MinSpeakers int    `toml:"min_speakers"`
	MaxSpeakers int    `toml:"max_speakers"`
}

// Refinement contains configuration for LLM transcript refinement.
type Refinement struct {
	Enabled                bool    `toml:"enabled"`
	SemanticSegmentation   bool    `toml:"semantic_segmentation"`
	ErrorCorrection        bool    `toml:"error_correction"`
	ExpressionOptimization bool    `toml:"expression_optimization"`
	TranslateTo            string  `toml:"translate_to"`
	AnchorThreshold        float64 `toml:"anchor_threshold"`
}

// LLM contains the LLM connection settings used by refinement.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Output contains default output encoding settings.
type Output struct {
	Formats       []string `toml:"formats"`
	SpeakerPrefix bool     `toml:"speaker_prefix"`
	IncludeWords  bool     `toml:"include_words"`
}

// Workflow contains worker pool sizing, daemon timing, and per-stage timeouts.
type Workflow struct {
	Workers            int `toml:"workers"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	DecodeTimeout      int `toml:"decode_timeout"`
	TranscribeTimeout  int `toml:"transcribe_timeout"`
	AlignTimeout       int `toml:"align_timeout"`
	DiarizeTimeout     int `toml:"diarize_timeout"`
	RefineTimeout      int `toml:"refine_timeout"`
	EncodeTimeout      int `toml:"encode_timeout"`
}

// Ingest contains watch-folder submission settings.
type Ingest struct {
	WatchDir         string `toml:"watch_dir"`
	SettleSeconds    int    `toml:"settle_seconds"`
	RemoveAfterQueue bool   `toml:"remove_after_queue"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Queued         bool   `toml:"queued"`
	Completed      bool   `toml:"completed"`
	Degraded       bool   `toml:"degraded"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Murmur.
//
// Configuration sections by subsystem:
//   - Paths: scratch, output, and log directories
//   - API: daemon HTTP bind address and optional token
//   - ASR: transcription/alignment inference service
//   - Diarization: speaker diarization inference service
//   - Refinement: LLM refinement features and re-anchoring threshold
//   - LLM: shared LLM connection settings
//   - Output: default output formats and rendering options
//   - Workflow: worker pool, polling, heartbeats, per-stage timeouts
//   - Ingest: watch-folder automatic submission
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	ASR           ASR           `toml:"asr"`
	Diarization   Diarization   `toml:"diarization"`
	Refinement    Refinement    `toml:"refinement"`
	LLM           LLM           `toml:"llm"`
	Output        Output        `toml:"output"`
	Workflow      Workflow      `toml:"workflow"`
	Ingest        Ingest        `toml:"ingest"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/murmur/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("murmur.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// OutputDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	if dir := strings.TrimSpace(c.Ingest.WatchDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ingest directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for audio extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// StageTimeout returns the configured timeout for a pipeline stage status,
// zero when the stage has no bound.
func (c *Config) StageTimeout(stage string) time.Duration {
	seconds := 0
	switch stage {
	case "decoding":
		seconds = c.Workflow.DecodeTimeout
	case "transcribing":
		seconds = c.Workflow.TranscribeTimeout
	case "aligning":
		seconds = c.Workflow.AlignTimeout
	case "diarizing":
		seconds = c.Workflow.DiarizeTimeout
	case "refining":
		seconds = c.Workflow.RefineTimeout
	case "encoding":
		seconds = c.Workflow.EncodeTimeout
	}
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the LLM connection settings in the shape the client
// consumes.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// GetLLM returns the shared LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
