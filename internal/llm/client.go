// Package llm wraps the OpenAI-compatible chat completions endpoint used
// by every LLM-backed pipeline stage.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"tripscout/internal/config"
)

// Completer is the single-turn completion contract the pipeline stages
// depend on; tests substitute function fakes.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client is a thin wrapper over the OpenAI Go SDK. The underlying
// connection pool is shared; callers hold the client by reference.
type Client struct {
	oc          openai.Client
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

func NewClient(cfg config.CompletionsConfig) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Host != "" {
		opts = append(opts, option.WithBaseURL(cfg.Host))
	}
	return &Client{
		oc:          openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     time.Duration(cfg.Timeout) * time.Second,
	}
}

// Complete sends a single user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	resp, err := c.oc.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
