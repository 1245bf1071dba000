package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lexsieve/lexsieve/internal/domain"
	"github.com/lexsieve/lexsieve/internal/metrics"
)

// UsageRecorder receives token usage after each successful generation call.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, promptTokens, completionTokens int)
}

// Generator is a text generation provider using the OpenAI-compatible chat
// completions API. Retry policy lives with the pipeline stages, not here.
type Generator struct {
	client   *openai.Client
	model    string
	recorder UsageRecorder
	logger   *zap.Logger
}

// Config holds the generation provider settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
	Recorder UsageRecorder
	Logger   *zap.Logger
}

// NewGenerator creates an OpenAI-compatible text generation provider.
func NewGenerator(cfg *Config) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Generator{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}
}

// Generate sends the prompt as a single user message and returns the first
// choice's content. Token usage goes to the recorder hook and metrics.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response: %w", domain.ErrGenerationUnavailable)
	}

	promptTokens := resp.Usage.PromptTokens
	completionTokens := resp.Usage.CompletionTokens
	if resp.Usage.TotalTokens > 0 {
		metrics.GenerationTokensTotal.WithLabelValues(g.model, "prompt").Add(float64(promptTokens))
		metrics.GenerationTokensTotal.WithLabelValues(g.model, "completion").Add(float64(completionTokens))
	}
	if g.recorder != nil {
		g.recorder.RecordUsage(ctx, promptTokens, completionTokens)
	}

	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response and
// wraps it with the sentinel that drives HTTP status mapping: 429 becomes
// ErrRateLimited, transport/5xx failures ErrGenerationUnavailable, other
// structured API rejections ErrGenerationRejected.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		wrap := domain.ErrGenerationUnavailable
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			wrap = domain.ErrRateLimited
		}
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("generation API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		wrap := domain.ErrGenerationRejected
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			wrap = domain.ErrRateLimited
		case apiErr.HTTPStatusCode >= 500:
			wrap = domain.ErrGenerationUnavailable
		}
		return fmt.Errorf("generation API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("generation request failed: %w", domain.ErrGenerationUnavailable)
}

// extractDetail extracts the "detail" field from a JSON error body
// (Nebius-style error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
