// Package openai implements the completion provider against the OpenAI
// chat completions API and compatible endpoints.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"chatrelay/internal/capabilities"
	"chatrelay/internal/domain"
	"chatrelay/internal/domain/services"
)

// Config carries the provider settings resolved at startup.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	httpClient *http.Client
	config     Config
	registry   *capabilities.Registry
	logger     *slog.Logger
}

// NewClient creates a provider client. The registry clamps max_tokens
// to what the configured model can actually emit.
func NewClient(config Config, registry *capabilities.Registry, logger *slog.Logger) *Client {
	return &Client{
		// Streaming responses stay open well past any sane per-request
		// timeout, so the client itself has none; callers cancel via ctx.
		httpClient: &http.Client{},
		config:     config,
		registry:   registry,
		logger:     logger,
	}
}

type chatCompletionRequest struct {
	Model       string                 `json:"model"`
	Messages    []services.ChatMessage `json:"messages"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`
	Temperature float64                `json:"temperature"`
	Stream      bool                   `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete submits the context window and blocks for the full response.
func (c *Client) Complete(ctx context.Context, messages []services.ChatMessage) (string, error) {
	start := time.Now()

	resp, err := c.post(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &domain.ProviderError{Message: fmt.Sprintf("decode completion response: %v", err)}
	}

	if len(parsed.Choices) == 0 {
		return "", &domain.ProviderError{Message: "completion response has no choices"}
	}

	c.logger.Debug("completion finished",
		"model", c.config.Model,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return parsed.Choices[0].Message.Content, nil
}

// post marshals and submits a chat completion request, mapping any
// transport or non-200 outcome to a ProviderError.
func (c *Client) post(ctx context.Context, messages []services.ChatMessage, stream bool) (*http.Response, error) {
	payload := chatCompletionRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.registry.ClampMaxTokens(c.config.Model, c.config.MaxTokens),
		Temperature: c.config.Temperature,
		Stream:      stream,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &domain.ProviderError{Message: fmt.Sprintf("marshal completion request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &domain.ProviderError{Message: fmt.Sprintf("build completion request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Message: fmt.Sprintf("completion request: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		c.logger.Warn("provider returned non-200",
			"status", resp.StatusCode,
			"body", string(b),
		)
		return nil, &domain.ProviderError{Message: fmt.Sprintf("provider returned %s", resp.Status)}
	}

	return resp, nil
}
