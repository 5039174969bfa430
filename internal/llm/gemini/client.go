// Package gemini implements llm.Client over the Gemini generateContent API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonesrussell/north-cloud/regwatch/internal/llm"
)

const (
	providerName   = "gemini"
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash"
)

func init() {
	llm.RegisterProvider(providerName, New, "google")
}

type client struct {
	cfg     llm.Config
	baseURL string
	apiKey  string
	model   string
}

// New builds a Gemini client. The key comes from cfg or GEMINI_API_KEY.
func New(cfg llm.Config) (llm.Client, error) {
	key := cfg.Key("GEMINI_API_KEY")
	if key == "" {
		return nil, errors.New("gemini: API key not configured")
	}
	return &client{
		cfg:     cfg,
		baseURL: cfg.BaseURLOr(defaultBaseURL),
		apiKey:  key,
		model:   cfg.ModelOr(defaultModel),
	}, nil
}

func (c *client) Provider() string { return providerName }

func (c *client) Generate(ctx context.Context, req llm.Request) (string, error) {
	return c.generate(ctx, req, "")
}

func (c *client) GenerateJSON(ctx context.Context, req llm.Request) (string, error) {
	return c.generate(ctx, req, "application/json")
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	CandidateCount   int     `json:"candidateCount"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *client) generate(ctx context.Context, req llm.Request, mime string) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxOutputTokens
	}

	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      req.Temperature,
			CandidateCount:   1,
			MaxOutputTokens:  maxTokens,
			ResponseMIMEType: mime,
		},
	}
	if req.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	headers := map[string]string{"x-goog-api-key": c.apiKey}

	var resp generateResponse
	if err := llm.PostJSON(ctx, c.cfg.HTTP(), c.cfg.MaxAttempts, url, headers, body, &resp); err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("gemini: response has no candidates")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String()), nil
}
