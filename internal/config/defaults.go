package config

const (
	defaultDataDir             = "~/.local/share/subweave"
	defaultLogDir              = "~/.local/share/subweave/logs"
	defaultAPIBind             = "127.0.0.1:7519"
	defaultAIBaseURL           = "https://openrouter.ai/api/v1"
	defaultFastModel           = "google/gemini-3-flash-preview"
	defaultDeepModel           = "google/gemini-3-pro-preview"
	defaultEmbeddingModel      = "openai/text-embedding-3-small"
	defaultAITimeoutSeconds    = 60
	defaultQueryTopK           = 5
	defaultUpsertChunkSize     = 100
	maxUpsertChunkSize         = 100
	defaultBatchSize           = 15
	defaultTone                = "Neutral"
	defaultTargetLanguage      = "ko"
	defaultWorkers             = 1
	defaultQueuePollInterval   = 2
	defaultErrorRetryInterval  = 5
	defaultMaxAttempts         = 2
	defaultRetryBackoffSeconds = 10
	defaultLogLevel            = "info"
	defaultLogFormat           = "text"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		AI: AI{
			BaseURL:        defaultAIBaseURL,
			FastModel:      defaultFastModel,
			DeepModel:      defaultDeepModel,
			EmbeddingModel: defaultEmbeddingModel,
			TimeoutSeconds: defaultAITimeoutSeconds,
		},
		Memory: Memory{
			QueryTopK:       defaultQueryTopK,
			UpsertChunkSize: defaultUpsertChunkSize,
		},
		Translation: Translation{
			BatchSize:      defaultBatchSize,
			DefaultTone:    defaultTone,
			TargetLanguage: defaultTargetLanguage,
		},
		Workflow: Workflow{
			Workers:             defaultWorkers,
			QueuePollInterval:   defaultQueuePollInterval,
			ErrorRetryInterval:  defaultErrorRetryInterval,
			MaxAttempts:         defaultMaxAttempts,
			RetryBackoffSeconds: defaultRetryBackoffSeconds,
		},
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}
