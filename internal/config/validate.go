package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Validate checks that the configuration can support a running daemon.
// Missing provider credentials fail fast here rather than mid-job.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.DataDir) == "" {
		problems = append(problems, "data_dir must be set")
	}
	if strings.TrimSpace(c.AI.APIKey) == "" {
		problems = append(problems, "ai.api_key must be set (or SUBWEAVE_AI_API_KEY)")
	}
	if strings.TrimSpace(c.AI.FastModel) == "" {
		problems = append(problems, "ai.fast_model must be set")
	}
	if strings.TrimSpace(c.AI.DeepModel) == "" {
		problems = append(problems, "ai.deep_model must be set")
	}
	if strings.TrimSpace(c.AI.EmbeddingModel) == "" {
		problems = append(problems, "ai.embedding_model must be set")
	}
	if strings.TrimSpace(c.Memory.IndexURL) == "" {
		problems = append(problems, "memory.index_url must be set")
	}
	if strings.TrimSpace(c.Memory.IndexName) == "" {
		problems = append(problems, "memory.index_name must be set")
	}
	if c.Memory.QueryTopK <= 0 {
		problems = append(problems, "memory.query_top_k must be positive")
	}
	if c.Memory.UpsertChunkSize <= 0 {
		problems = append(problems, "memory.upsert_chunk_size must be positive")
	}
	if c.Translation.BatchSize <= 0 {
		problems = append(problems, "translation.batch_size must be positive")
	}
	if tag := strings.TrimSpace(c.Translation.TargetLanguage); tag == "" {
		problems = append(problems, "translation.target_language must be set")
	} else if _, err := language.Parse(tag); err != nil {
		problems = append(problems, fmt.Sprintf("translation.target_language %q is not a valid language tag", tag))
	}
	if c.Workflow.Workers <= 0 {
		problems = append(problems, "workflow.workers must be positive")
	}
	if c.Workflow.MaxAttempts <= 0 {
		problems = append(problems, "workflow.max_attempts must be positive")
	}
	if c.Workflow.RetryBackoffSeconds < 0 {
		problems = append(problems, "workflow.retry_backoff_seconds must not be negative")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
