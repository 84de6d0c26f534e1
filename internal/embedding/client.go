// Package embedding provides the task-typed embedding encoder backing the
// vector store. It speaks the OpenAI-compatible /v1/embeddings protocol.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tripscout/internal/config"
)

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Client calls the configured embedding endpoint. The encoder is
// deterministic for a given (model, text, task type); the task type is
// realized as a configurable prefix on the input text.
type Client struct {
	cfg  config.EmbeddingsConfig
	http *http.Client
}

func NewClient(cfg config.EmbeddingsConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

// Dimensions returns the configured output dimension (0 = unchecked).
func (c *Client) Dimensions() int { return c.cfg.Dimensions }

// EmbedQuery embeds a single search query with the query task type.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := c.embed(ctx, []string{c.cfg.SearchPrefix + text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedDocuments embeds documents with the document task type.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = c.cfg.EmbedPrefix + t
	}
	return c.embed(ctx, inputs)
}

func (c *Client) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs")
	}
	reqBody, _ := json.Marshal(embedReq{Model: c.cfg.Model, Input: inputs})

	url := c.cfg.Host + c.cfg.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embeddings error: %s: %s", resp.Status, string(b))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embeddings response: %w", err)
	}

	var er embedResp
	if err := json.Unmarshal(body, &er); err != nil {
		return nil, fmt.Errorf("parse embeddings response: %w", err)
	}
	if len(er.Data) != len(inputs) {
		return nil, fmt.Errorf("unexpected embedding count: got %d, want %d", len(er.Data), len(inputs))
	}

	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		if c.cfg.Dimensions > 0 && len(er.Data[i].Embedding) != c.cfg.Dimensions {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d",
				len(er.Data[i].Embedding), c.cfg.Dimensions)
		}
		out[i] = er.Data[i].Embedding
	}
	return out, nil
}

// CheckReachability sends a tiny request to verify the endpoint responds.
func (c *Client) CheckReachability(ctx context.Context) error {
	if _, err := c.embed(ctx, []string{"ping"}); err != nil {
		return fmt.Errorf("embedding endpoint reachability check failed: %w", err)
	}
	return nil
}
