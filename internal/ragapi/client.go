// Package ragapi is a thin HTTP client for the CampusIQ RAG backend. It is
// stateless: every call is a single request/response round trip.
package ragapi

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

const DefaultTopK = 5

type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type queryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type Source struct {
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	Score          float64 `json:"score"`
	ScoreType      string  `json:"score_type"`
	ContentPreview string  `json:"content_preview"`
}

type QueryResult struct {
	Query      string   `json:"query"`
	Response   string   `json:"response"`
	Sources    []Source `json:"sources"`
	NumSources int      `json:"num_sources"`
}

type Stats struct {
	TotalChunks        int     `json:"total_chunks"`
	UniqueDocuments    int     `json:"unique_documents"`
	TotalWords         int     `json:"total_words"`
	AverageChunkLength float64 `json:"average_chunk_length"`
	ModelName          string  `json:"model_name"`
	EmbeddingDimension int     `json:"embedding_dimension"`
	GroqAvailable      bool    `json:"groq_available"`
	GroqModel          *string `json:"groq_model"`
	RerankerEnabled    bool    `json:"reranker_enabled"`
}

type Health struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	RAGSystemReady bool   `json:"rag_system_ready"`
}

// APIError is a non-2xx backend response. Detail carries the backend's
// explanation and is intended for diagnostics, not for end users.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Detail)
}

// Query submits a question and returns the answer with its ranked sources.
// The source order is the backend's ranking order and is preserved as-is.
func (c *Client) Query(ctx context.Context, query string, k int) (QueryResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	payload, err := json.Marshal(queryRequest{Query: query, K: k})
	if err != nil {
		return QueryResult{}, fmt.Errorf("encode query request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/query", bytes.NewReader(payload))
	if err != nil {
		return QueryResult{}, fmt.Errorf("build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return QueryResult{}, fmt.Errorf("query request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return QueryResult{}, fmt.Errorf("read query response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return QueryResult{}, apiError(resp.StatusCode, body)
	}

	var out QueryResult
	if err := json.Unmarshal(body, &out); err != nil {
		return QueryResult{}, fmt.Errorf("decode query response: %w", err)
	}
	return out, nil
}

// Stats fetches the current system statistics snapshot.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	if err := c.get(ctx, "/api/stats", &out); err != nil {
		return Stats{}, err
	}
	return out, nil
}

// Health performs a best-effort health probe.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	if err := c.get(ctx, "/api/health", &out); err != nil {
		return Health{}, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func apiError(status int, body []byte) error {
	var parsed struct {
		Detail string `json:"detail"`
	}
	// Error bodies are best-effort JSON; anything unparseable still maps to
	// an APIError carrying only the status.
	_ = json.Unmarshal(body, &parsed)
	return &APIError{StatusCode: status, Detail: parsed.Detail}
}
