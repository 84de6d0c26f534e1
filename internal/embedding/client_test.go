package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tripscout/internal/config"
)

func newTestServer(t *testing.T, record *[]embedReq) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request: %v", err)
		}
		*record = append(*record, req)
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"embedding": []float32{0.1, 0.2, 0.3}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedDocumentsAppliesPrefix(t *testing.T) {
	var reqs []embedReq
	srv := newTestServer(t, &reqs)
	c := NewClient(config.EmbeddingsConfig{
		Host: srv.URL, Path: "/v1/embeddings", Model: "m",
		Dimensions: 3, EmbedPrefix: "passage: ", SearchPrefix: "query: ",
	})

	out, err := c.EmbedDocuments(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || len(out[0]) != 3 {
		t.Fatalf("unexpected output shape: %v", out)
	}
	if reqs[0].Input[0] != "passage: a" || reqs[0].Input[1] != "passage: b" {
		t.Fatalf("document prefix missing: %v", reqs[0].Input)
	}
}

func TestEmbedQueryAppliesSearchPrefix(t *testing.T) {
	var reqs []embedReq
	srv := newTestServer(t, &reqs)
	c := NewClient(config.EmbeddingsConfig{
		Host: srv.URL, Path: "/v1/embeddings", Model: "m",
		Dimensions: 3, EmbedPrefix: "passage: ", SearchPrefix: "query: ",
	})

	if _, err := c.EmbedQuery(context.Background(), "seoul food"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reqs[0].Input[0] != "query: seoul food" {
		t.Fatalf("query prefix missing: %v", reqs[0].Input)
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	var reqs []embedReq
	srv := newTestServer(t, &reqs)
	c := NewClient(config.EmbeddingsConfig{
		Host: srv.URL, Path: "/v1/embeddings", Model: "m", Dimensions: 768,
	})
	if _, err := c.EmbedDocuments(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	c := NewClient(config.EmbeddingsConfig{Host: "http://127.0.0.1:0"})
	out, err := c.EmbedDocuments(context.Background(), nil)
	if err != nil || out != nil {
		t.Fatalf("empty input should be a no-op, got %v %v", out, err)
	}
}
