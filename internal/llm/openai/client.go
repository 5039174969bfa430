// Package openai implements llm.Client over the OpenAI chat completions API.
// Any OpenAI-compatible endpoint works through llm.base_url.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonesrussell/north-cloud/regwatch/internal/llm"
)

const (
	providerName    = "openai"
	defaultBaseURL  = "https://api.openai.com/v1"
	defaultModel    = "gpt-4o-mini"
	defaultMaxToken = 1024
)

func init() {
	llm.RegisterProvider(providerName, New, "gpt", "chatgpt")
}

type client struct {
	cfg      llm.Config
	endpoint string
	apiKey   string
	model    string
}

// New builds an OpenAI client. The key comes from cfg or OPENAI_API_KEY.
func New(cfg llm.Config) (llm.Client, error) {
	key := cfg.Key("OPENAI_API_KEY")
	if key == "" {
		return nil, errors.New("openai: API key not configured")
	}
	return &client{
		cfg:      cfg,
		endpoint: cfg.BaseURLOr(defaultBaseURL) + "/chat/completions",
		apiKey:   key,
		model:    cfg.ModelOr(defaultModel),
	}, nil
}

func (c *client) Provider() string { return providerName }

func (c *client) Generate(ctx context.Context, req llm.Request) (string, error) {
	return c.complete(ctx, req, false)
}

func (c *client) GenerateJSON(ctx context.Context, req llm.Request) (string, error) {
	return c.complete(ctx, req, true)
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

func (c *client) complete(ctx context.Context, req llm.Request, jsonMode bool) (string, error) {
	body := chatRequest{
		Model:       firstNonEmpty(req.Model, c.model),
		Temperature: req.Temperature,
		MaxTokens:   maxTokens(req.MaxOutputTokens, c.cfg.MaxOutputTokens),
	}
	if req.System != "" {
		body.Messages = append(body.Messages, message{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, message{Role: "user", Content: req.Prompt})
	if jsonMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp chatResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := llm.PostJSON(ctx, c.cfg.HTTP(), c.cfg.MaxAttempts, c.endpoint, headers, body, &resp); err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: response has no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func maxTokens(req, cfg int) int {
	switch {
	case req > 0:
		return req
	case cfg > 0:
		return cfg
	default:
		return defaultMaxToken
	}
}
