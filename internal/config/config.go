package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// AI contains connection settings for the generative model provider.
type AI struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	FastModel      string `toml:"fast_model"`
	DeepModel      string `toml:"deep_model"`
	EmbeddingModel string `toml:"embedding_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Memory contains connection settings for the vector index service.
type Memory struct {
	IndexURL        string `toml:"index_url"`
	IndexName       string `toml:"index_name"`
	APIKey          string `toml:"api_key"`
	QueryTopK       int    `toml:"query_top_k"`
	UpsertChunkSize int    `toml:"upsert_chunk_size"`
}

// Translation contains pipeline tuning for translation jobs.
type Translation struct {
	BatchSize      int    `toml:"batch_size"`
	DefaultTone    string `toml:"default_tone"`
	TargetLanguage string `toml:"target_language"`
}

// Workflow contains worker pool timing and retry settings.
type Workflow struct {
	Workers             int `toml:"workers"`
	QueuePollInterval   int `toml:"queue_poll_interval"`
	ErrorRetryInterval  int `toml:"error_retry_interval"`
	MaxAttempts         int `toml:"max_attempts"`
	RetryBackoffSeconds int `toml:"retry_backoff_seconds"`
}

// Config is the root configuration object.
type Config struct {
	Paths
	AI          AI          `toml:"ai"`
	Memory      Memory      `toml:"memory"`
	Translation Translation `toml:"translation"`
	Workflow    Workflow    `toml:"workflow"`
	LogLevel    string      `toml:"log_level"`
	LogFormat   string      `toml:"log_format"`
}

// SampleConfig returns the annotated sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() string {
	return "~/.config/subweave/config.toml"
}

// Load reads configuration from path, falling back to the default location,
// and overlays it onto defaults. A missing file yields defaults plus
// environment overrides; the boolean reports whether a file was read.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = DefaultConfigPath()
	}
	resolved = ExpandPath(resolved)

	used := false
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
		used = true
	case errors.Is(err, fs.ErrNotExist):
		if strings.TrimSpace(path) != "" {
			return nil, false, fmt.Errorf("config file %s not found", resolved)
		}
	default:
		return nil, false, fmt.Errorf("read config %s: %w", resolved, err)
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, used, err
	}
	return &cfg, used, nil
}

func (c *Config) applyEnvOverrides() {
	if key := strings.TrimSpace(os.Getenv("SUBWEAVE_AI_API_KEY")); key != "" {
		c.AI.APIKey = key
	}
	if key := strings.TrimSpace(os.Getenv("SUBWEAVE_MEMORY_API_KEY")); key != "" {
		c.Memory.APIKey = key
	}
}

func (c *Config) normalize() {
	c.DataDir = ExpandPath(c.DataDir)
	c.LogDir = ExpandPath(c.LogDir)
	c.AI.BaseURL = strings.TrimRight(strings.TrimSpace(c.AI.BaseURL), "/")
	c.Memory.IndexURL = strings.TrimRight(strings.TrimSpace(c.Memory.IndexURL), "/")
	if c.Memory.UpsertChunkSize > maxUpsertChunkSize {
		c.Memory.UpsertChunkSize = maxUpsertChunkSize
	}
}

// EnsureDirectories creates the data and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ExpandPath resolves a leading ~ against the user's home directory.
func ExpandPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || !strings.HasPrefix(trimmed, "~") {
		return trimmed
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return trimmed
	}
	if trimmed == "~" {
		return home
	}
	return filepath.Join(home, strings.TrimPrefix(trimmed, "~/"))
}
