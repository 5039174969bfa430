// Package llm is the provider-agnostic completion interface. Backends live in
// subpackages and register themselves by name; import
// internal/llm/providers to link all of them.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrProviderNotRegistered is returned by NewClient for unknown provider names.
var ErrProviderNotRegistered = errors.New("llm: provider not registered")

// Request is a single-turn completion. Temperature is always sent as given,
// so the zero value requests deterministic output.
type Request struct {
	System          string
	Prompt          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

// Client performs completions against one backend.
type Client interface {
	// Generate returns free-form text.
	Generate(ctx context.Context, req Request) (string, error)
	// GenerateJSON asks the backend for a single JSON object. Backends without
	// a structured output mode fall back to Generate.
	GenerateJSON(ctx context.Context, req Request) (string, error)
	// Provider is the registered backend name.
	Provider() string
}

// Config carries construction inputs shared by all backends.
type Config struct {
	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
	MaxOutputTokens int
	MaxAttempts     int
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Factory builds a Client for one backend.
type Factory func(Config) (Client, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// RegisterProvider registers factory under name and any aliases, case-insensitively.
func RegisterProvider(name string, factory Factory, aliases ...string) {
	mu.Lock()
	defer mu.Unlock()

	for _, n := range append([]string{name}, aliases...) {
		factories[strings.ToLower(n)] = factory
	}
}

// Providers lists registered names, aliases included.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewClient builds the backend named by cfg.Provider.
func NewClient(cfg Config) (Client, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))

	mu.RLock()
	factory := factories[name]
	mu.RUnlock()

	if factory == nil {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(cfg)
}

// HTTP returns cfg.HTTPClient or a client with cfg.Timeout (120s when unset).
func (c Config) HTTP() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Key returns cfg.APIKey, falling back to the named environment variable.
func (c Config) Key(envVar string) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv(envVar)
}

// ModelOr returns cfg.Model or def.
func (c Config) ModelOr(def string) string {
	if strings.TrimSpace(c.Model) != "" {
		return c.Model
	}
	return def
}

// BaseURLOr returns cfg.BaseURL without a trailing slash, or def.
func (c Config) BaseURLOr(def string) string {
	if u := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"); u != "" {
		return u
	}
	return def
}
