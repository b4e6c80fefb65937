package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Vector is one embedded subtitle line stored in the index.
type Vector struct {
	ID     string    `json:"id"`
	Values []float32 `json:"values"`
	Text   string    `json:"text"`
}

// Match is one nearest-neighbor result.
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// VectorIndex is the boundary contract for the external vector service.
// Every operation is namespace-scoped; implementations must never mix
// namespaces.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)
	DeleteNamespace(ctx context.Context, namespace string) error
}

// HTTPIndexConfig captures the settings required to reach the index service.
type HTTPIndexConfig struct {
	BaseURL   string
	IndexName string
	APIKey    string
	Timeout   time.Duration
}

// HTTPIndex talks to a REST vector index service.
type HTTPIndex struct {
	cfg        HTTPIndexConfig
	httpClient *http.Client
}

// NewHTTPIndex constructs an index client.
func NewHTTPIndex(cfg HTTPIndexConfig, httpClient *http.Client) *HTTPIndex {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.IndexName = strings.TrimSpace(cfg.IndexName)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPIndex{cfg: cfg, httpClient: httpClient}
}

type upsertRequest struct {
	Namespace string         `json:"namespace"`
	Vectors   []upsertVector `json:"vectors"`
}

type upsertVector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

type queryRequest struct {
	Namespace       string    `json:"namespace"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string            `json:"id"`
		Score    float64           `json:"score"`
		Metadata map[string]string `json:"metadata"`
	} `json:"matches"`
}

type deleteRequest struct {
	Namespace string `json:"namespace"`
	DeleteAll bool   `json:"deleteAll"`
}

// Upsert writes vectors into the namespace.
func (x *HTTPIndex) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	payload := upsertRequest{Namespace: namespace, Vectors: make([]upsertVector, 0, len(vectors))}
	for _, vec := range vectors {
		payload.Vectors = append(payload.Vectors, upsertVector{
			ID:       vec.ID,
			Values:   vec.Values,
			Metadata: map[string]string{"text": vec.Text},
		})
	}
	return x.post(ctx, "/vectors/upsert", payload, nil)
}

// Query returns up to topK nearest neighbors within the namespace.
func (x *HTTPIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	payload := queryRequest{Namespace: namespace, Vector: vector, TopK: topK, IncludeMetadata: true}
	var parsed queryResponse
	if err := x.post(ctx, "/query", payload, &parsed); err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		matches = append(matches, Match{ID: m.ID, Score: m.Score, Text: m.Metadata["text"]})
	}
	return matches, nil
}

// DeleteNamespace removes every vector in the namespace.
func (x *HTTPIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	return x.post(ctx, "/vectors/delete", deleteRequest{Namespace: namespace, DeleteAll: true}, nil)
}

func (x *HTTPIndex) post(ctx context.Context, path string, payload, target any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	endpoint := x.cfg.BaseURL + "/indexes/" + x.cfg.IndexName + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if x.cfg.APIKey != "" {
		req.Header.Set("Api-Key", x.cfg.APIKey)
	}

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("index request %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("index read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("index request %s: http %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if target != nil {
		if err := json.Unmarshal(body, target); err != nil {
			return fmt.Errorf("index decode response: %w", err)
		}
	}
	return nil
}
