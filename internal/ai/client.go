// Package ai wraps the OpenAI-compatible API used for narrative and
// illustration generation. It covers plain JSON-mode chat completions,
// DALL-E image requests and the assistant/thread surface used for
// stateful story conversations.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// Config holds connection parameters for the AI provider.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Timeout        time.Duration
	MaxAttempts    int
	BaseRetryDelay time.Duration

	ImageModel   string
	ImageSize    string
	ImageQuality string
}

// Client is a thin retrying wrapper over the go-openai client.
type Client struct {
	api *openai.Client
	cfg Config

	mu          sync.Mutex
	assistantID string
}

// NewClient builds a Client from cfg. APIKey and Model must be set.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai: api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("ai: model is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseRetryDelay <= 0 {
		cfg.BaseRetryDelay = time.Second
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	log.Info().
		Str("baseURL", apiCfg.BaseURL).
		Str("model", cfg.Model).
		Dur("timeout", cfg.Timeout).
		Int("maxAttempts", cfg.MaxAttempts).
		Msg("AI client initialized")

	return &Client{api: openai.NewClientWithConfig(apiCfg), cfg: cfg}, nil
}

// Model returns the chat model the client was configured with.
func (c *Client) Model() string {
	return c.cfg.Model
}

// CompleteJSON runs a JSON-mode chat completion and returns the raw
// content of the first choice. Transient provider errors are retried
// with exponential backoff; a response that is not a JSON object is
// treated as a failed attempt as well.
func (c *Client) CompleteJSON(ctx context.Context, system, user string, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.8,
		MaxTokens:   maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.cfg.BaseRetryDelay * time.Duration(1<<(attempt-2))
			log.Warn().
				Int("attempt", attempt).
				Dur("delay", delay).
				Err(lastErr).
				Msg("Retrying chat completion")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		start := time.Now()
		resp, err := c.api.CreateChatCompletion(ctx, req)
		aiRequestDuration.WithLabelValues(c.cfg.Model, "chat").Observe(time.Since(start).Seconds())
		if err != nil {
			aiRequestsTotal.WithLabelValues(c.cfg.Model, "chat", "error").Inc()
			lastErr = err
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		if len(resp.Choices) == 0 {
			aiRequestsTotal.WithLabelValues(c.cfg.Model, "chat", "empty").Inc()
			lastErr = errors.New("ai: response contains no choices")
			continue
		}

		c.observeUsage(resp, system+user)

		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if !looksLikeJSONObject(content) {
			aiRequestsTotal.WithLabelValues(c.cfg.Model, "chat", "malformed").Inc()
			lastErr = fmt.Errorf("ai: response is not a JSON object: %s", snippet(content, 120))
			continue
		}

		aiRequestsTotal.WithLabelValues(c.cfg.Model, "chat", "success").Inc()
		return content, nil
	}
	return "", fmt.Errorf("ai: chat completion failed after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

// GenerateImage submits a single image generation request and returns
// the URL of the rendered image. No retries here: callers decide how a
// missing illustration degrades.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.cfg.ImageModel,
		N:              1,
		Size:           c.cfg.ImageSize,
		Quality:        c.cfg.ImageQuality,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	aiRequestDuration.WithLabelValues(c.cfg.ImageModel, "image").Observe(time.Since(start).Seconds())
	if err != nil {
		imageRequestsTotal.WithLabelValues(c.cfg.ImageModel, "error").Inc()
		return "", fmt.Errorf("ai: image generation failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		imageRequestsTotal.WithLabelValues(c.cfg.ImageModel, "empty").Inc()
		return "", errors.New("ai: image response contains no data")
	}
	imageRequestsTotal.WithLabelValues(c.cfg.ImageModel, "success").Inc()
	return resp.Data[0].URL, nil
}

func (c *Client) observeUsage(resp openai.ChatCompletionResponse, prompt string) {
	promptTokens := resp.Usage.PromptTokens
	completionTokens := resp.Usage.CompletionTokens
	if resp.Usage.TotalTokens == 0 {
		// Some OpenAI-compatible backends omit usage; estimate locally.
		if enc, err := tiktoken.EncodingForModel(c.cfg.Model); err == nil {
			promptTokens = len(enc.Encode(prompt, nil, nil))
			if len(resp.Choices) > 0 {
				completionTokens = len(enc.Encode(resp.Choices[0].Message.Content, nil, nil))
			}
		}
	}
	aiPromptTokens.WithLabelValues(c.cfg.Model).Observe(float64(promptTokens))
	aiCompletionTokens.WithLabelValues(c.cfg.Model).Observe(float64(completionTokens))
}

func looksLikeJSONObject(s string) bool {
	s = stripCodeFences(s)
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}

// stripCodeFences removes a surrounding markdown code fence if the
// model wrapped its JSON answer in one.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// StripCodeFences exposes fence stripping for response parsers.
func StripCodeFences(s string) string {
	return stripCodeFences(s)
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
