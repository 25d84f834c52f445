package ragapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestQuerySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/query" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["query"] != "what departments exist?" {
			t.Errorf("unexpected query field: %v", req["query"])
		}
		if req["k"] != float64(5) {
			t.Errorf("expected default k=5, got %v", req["k"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"query": "what departments exist?",
			"response": "Answer text",
			"sources": [
				{"title": "Doc A", "url": "http://x", "score": 0.912, "score_type": "rerank", "content_preview": "..."}
			],
			"num_sources": 1
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	out, err := c.Query(context.Background(), "what departments exist?", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if out.Response != "Answer text" {
		t.Fatalf("unexpected response text: %q", out.Response)
	}
	if len(out.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(out.Sources))
	}
	src := out.Sources[0]
	if src.Title != "Doc A" || src.URL != "http://x" || src.Score != 0.912 || src.ScoreType != "rerank" {
		t.Fatalf("unexpected source: %+v", src)
	}
}

func TestQueryNonSuccessCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail": "vector store not ready"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.Query(context.Background(), "q", 5)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", apiErr.StatusCode)
	}
	if apiErr.Detail != "vector store not ready" {
		t.Fatalf("unexpected detail: %q", apiErr.Detail)
	}
}

func TestQueryNonSuccessWithUnparseableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<html>boom</html>`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.Query(context.Background(), "q", 5)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Detail != "" {
		t.Fatalf("expected empty detail for non-JSON body, got %q", apiErr.Detail)
	}
}

func TestQueryMalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	if _, err := c.Query(context.Background(), "q", 5); err == nil {
		t.Fatalf("expected decode error for malformed body")
	}
}

func TestStatsOptionalGroqModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stats" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"total_chunks": 1200,
			"unique_documents": 40,
			"total_words": 500000,
			"average_chunk_length": 416.7,
			"model_name": "all-MiniLM-L6-v2",
			"embedding_dimension": 384,
			"groq_available": false,
			"reranker_enabled": true
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	stats, err := c.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalChunks != 1200 || stats.EmbeddingDimension != 384 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.GroqModel != nil {
		t.Fatalf("expected absent groq_model to stay nil, got %q", *stats.GroqModel)
	}
	if !stats.RerankerEnabled {
		t.Fatalf("expected reranker enabled")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status": "healthy", "message": "RAG system is ready", "rag_system_ready": true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !h.RAGSystemReady || h.Status != "healthy" {
		t.Fatalf("unexpected health: %+v", h)
	}
}

func TestBaseURLTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			t.Errorf("double slash leaked into path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status": "healthy"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second)
	if _, err := c.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}
