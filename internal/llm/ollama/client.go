// Package ollama implements llm.Client over a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jonesrussell/north-cloud/regwatch/internal/llm"
)

const (
	providerName   = "ollama"
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama2"
)

func init() {
	llm.RegisterProvider(providerName, New, "local")
}

type client struct {
	cfg      llm.Config
	endpoint string
	model    string
}

// New builds an Ollama client. The base URL comes from cfg or OLLAMA_URL.
func New(cfg llm.Config) (llm.Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OLLAMA_URL")
	}
	return &client{
		cfg:      cfg,
		endpoint: cfg.BaseURLOr(defaultBaseURL) + "/api/generate",
		model:    cfg.ModelOr(defaultModel),
	}, nil
}

func (c *client) Provider() string { return providerName }

func (c *client) Generate(ctx context.Context, req llm.Request) (string, error) {
	return c.generate(ctx, req, "")
}

func (c *client) GenerateJSON(ctx context.Context, req llm.Request) (string, error) {
	return c.generate(ctx, req, "json")
}

type options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateRequest struct {
	Model   string  `json:"model"`
	System  string  `json:"system,omitempty"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Format  string  `json:"format,omitempty"`
	Options options `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (c *client) generate(ctx context.Context, req llm.Request, format string) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	numPredict := req.MaxOutputTokens
	if numPredict <= 0 {
		numPredict = c.cfg.MaxOutputTokens
	}

	body := generateRequest{
		Model:   model,
		System:  req.System,
		Prompt:  req.Prompt,
		Format:  format,
		Options: options{Temperature: req.Temperature, NumPredict: numPredict},
	}

	var resp generateResponse
	if err := llm.PostJSON(ctx, c.cfg.HTTP(), c.cfg.MaxAttempts, c.endpoint, nil, body, &resp); err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	return strings.TrimSpace(resp.Response), nil
}
