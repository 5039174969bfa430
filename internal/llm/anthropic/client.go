// Package anthropic implements llm.Client with the official Anthropic SDK.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jonesrussell/north-cloud/regwatch/internal/llm"
)

const (
	providerName     = "anthropic"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 1024

	// jsonInstruction is appended to the system prompt in JSON mode; the
	// Messages API has no response_format switch.
	jsonInstruction = "Respond with a single JSON object and nothing else."
)

func init() {
	llm.RegisterProvider(providerName, New, "claude")
}

type client struct {
	api       sdk.Client
	model     string
	maxTokens int
}

// New builds an Anthropic client. The key comes from cfg or ANTHROPIC_API_KEY.
// Retries are delegated to the SDK.
func New(cfg llm.Config) (llm.Client, error) {
	key := cfg.Key("ANTHROPIC_API_KEY")
	if key == "" {
		return nil, errors.New("anthropic: API key not configured")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(cfg.HTTP()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxAttempts-1))
	}

	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &client{
		api:       sdk.NewClient(opts...),
		model:     cfg.ModelOr(defaultModel),
		maxTokens: maxTokens,
	}, nil
}

func (c *client) Provider() string { return providerName }

func (c *client) Generate(ctx context.Context, req llm.Request) (string, error) {
	return c.send(ctx, req, req.System)
}

func (c *client) GenerateJSON(ctx context.Context, req llm.Request) (string, error) {
	system := jsonInstruction
	if req.System != "" {
		system = req.System + "\n" + jsonInstruction
	}
	return c.send(ctx, req, system)
}

func (c *client) send(ctx context.Context, req llm.Request, system string) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(model),
		MaxTokens:   int64(maxTokens),
		Temperature: sdk.Float(req.Temperature),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("anthropic: %w", &llm.StatusError{Code: apiErr.StatusCode, Body: apiErr.Error()})
		}
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", errors.New("anthropic: empty response")
	}
	return text, nil
}
