package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"subweave/internal/logging"
	"subweave/internal/services"
	"subweave/internal/subtitles"
)

// EmptyContext is returned by Query when the namespace holds nothing relevant.
const EmptyContext = "No relevant prior dialogue."

// Embedder produces one vector per input text, order-preserving.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store wraps the vector index with per-job namespacing. Each job's worker is
// the only writer for its namespace; reads against other namespaces are
// unaffected.
type Store struct {
	embedder  Embedder
	index     VectorIndex
	chunkSize int
	logger    *slog.Logger
}

// NewStore constructs a memory store. chunkSize caps vectors per upsert call.
func NewStore(embedder Embedder, index VectorIndex, chunkSize int, logger *slog.Logger) *Store {
	if chunkSize <= 0 || chunkSize > 100 {
		chunkSize = 100
	}
	return &Store{
		embedder:  embedder,
		index:     index,
		chunkSize: chunkSize,
		logger:    logging.NewComponentLogger(logger, "memory"),
	}
}

// Index embeds every line text and upserts the vectors under the job's
// namespace. Any failure aborts the whole operation; a partially indexed
// namespace is not a valid state and the caller must treat the error as
// fatal to the job.
func (s *Store) Index(ctx context.Context, jobID string, lines []subtitles.Line) error {
	if len(lines) == 0 {
		return nil
	}

	texts := make([]string, len(lines))
	for i, line := range lines {
		texts[i] = line.Text
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return services.Wrap(services.ErrIndexing, "memory", "index", "embed lines", err)
	}
	if len(embeddings) != len(lines) {
		return services.Wrap(services.ErrIndexing, "memory", "index",
			fmt.Sprintf("got %d embeddings for %d lines", len(embeddings), len(lines)), nil)
	}

	vectors := make([]Vector, len(lines))
	for i, line := range lines {
		vectors[i] = Vector{
			ID:     fmt.Sprintf("%s-%d", jobID, line.Sequence),
			Values: embeddings[i],
			Text:   line.Text,
		}
	}

	for start := 0; start < len(vectors); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(vectors) {
			end = len(vectors)
		}
		if err := s.index.Upsert(ctx, jobID, vectors[start:end]); err != nil {
			return services.Wrap(services.ErrIndexing, "memory", "index",
				fmt.Sprintf("upsert chunk %d-%d", start, end), err)
		}
	}

	s.logger.Debug("indexed job lines",
		logging.String(logging.FieldJobID, jobID),
		logging.Int("lines", len(lines)),
	)
	return nil
}

// Query embeds the text and returns the concatenated topK matched line texts
// from the job's namespace. A namespace with no matches yields EmptyContext,
// never an error.
func (s *Store) Query(ctx context.Context, jobID, text string, topK int) (string, error) {
	if topK <= 0 {
		topK = 5
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return "", services.Wrap(services.ErrAI, "memory", "query", "embed query", err)
	}
	if len(embeddings) != 1 {
		return "", services.Wrap(services.ErrAI, "memory", "query", "embedder returned no vector", nil)
	}

	matches, err := s.index.Query(ctx, jobID, embeddings[0], topK)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "memory", "query", "", err)
	}

	parts := make([]string, 0, len(matches))
	for _, match := range matches {
		if trimmed := strings.TrimSpace(match.Text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return EmptyContext, nil
	}
	return strings.Join(parts, "\n"), nil
}

// Purge deletes the job's namespace. Best-effort: callers log failures and
// move on, a leftover namespace never fails a completed job.
func (s *Store) Purge(ctx context.Context, jobID string) error {
	if err := s.index.DeleteNamespace(ctx, jobID); err != nil {
		return fmt.Errorf("purge namespace %s: %w", jobID, err)
	}
	return nil
}
