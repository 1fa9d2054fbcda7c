package config

const (
	defaultScratchDir        = "~/.local/share/murmur/scratch"
	defaultOutputDir         = "~/transcripts"
	defaultLogDir            = "~/.local/share/murmur/logs"
	defaultLogRetentionDays  = 60
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultAPIBind           = "127.0.0.1:7517"
	defaultASRBaseURL        = "http://127.0.0.1:9090"
	defaultASRModel          = "large-v3"
	defaultDiarizerBaseURL   = "http://127.0.0.1:9091"
	defaultLLMBaseURL        = "http://127.0.0.1:8000/v1/chat/completions"
	defaultLLMModel          = "Qwen/Qwen3-32B"
	defaultLLMTimeoutSeconds = 120
	defaultAnchorThreshold   = 0.55
	defaultWorkers           = 1
	defaultHeartbeatInterval = 15
	defaultHeartbeatTimeout  = 120
	defaultDecodeTimeout     = 600
	defaultTranscribeTimeout = 3600
	defaultAlignTimeout      = 1800
	defaultDiarizeTimeout    = 1800
	defaultRefineTimeout     = 900
	defaultEncodeTimeout     = 120
	defaultIngestSettle      = 10
	defaultNotifyTimeout     = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		ASR: ASR{
			BaseURL: defaultASRBaseURL,
			Model:   defaultASRModel,
		},
		Diarization: Diarization{
			Enabled: true,
			BaseURL: defaultDiarizerBaseURL,
		},
		Refinement: Refinement{
			Enabled:              true,
			SemanticSegmentation: true,
			ErrorCorrection:      true,
			AnchorThreshold:      defaultAnchorThreshold,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Output: Output{
			Formats:       []string{"json", "srt"},
			SpeakerPrefix: true,
			IncludeWords:  true,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			DecodeTimeout:      defaultDecodeTimeout,
			TranscribeTimeout:  defaultTranscribeTimeout,
			AlignTimeout:       defaultAlignTimeout,
			DiarizeTimeout:     defaultDiarizeTimeout,
			RefineTimeout:      defaultRefineTimeout,
			EncodeTimeout:      defaultEncodeTimeout,
		},
		Ingest: Ingest{
			SettleSeconds: defaultIngestSettle,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Queued:         true,
			Completed:      true,
			Degraded:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
