// Package fetcher downloads regulatory pages with a browser-like client.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonesrussell/north-cloud/regwatch/internal/logger"
	"github.com/jonesrussell/north-cloud/regwatch/internal/retry"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 10 << 20
)

var (
	// ErrDisallowed is returned when robots.txt forbids the URL.
	ErrDisallowed = errors.New("fetch disallowed by robots.txt")
	// ErrBodyTooLarge is returned when a page exceeds MaxBodyBytes.
	ErrBodyTooLarge = errors.New("response body too large")
)

// StatusError is a non-2xx page response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Code)
}

// Config controls page fetching.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	Attempts      int
	MaxBodyBytes  int64
	RespectRobots bool
}

// Fetcher performs GET requests for source pages.
type Fetcher struct {
	client *http.Client
	cfg    Config
	robots *RobotsChecker
	log    logger.Logger
}

// New creates a Fetcher. A nil client gets one with cfg.Timeout.
func New(cfg Config, client *http.Client, log logger.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	f := &Fetcher{client: client, cfg: cfg, log: log}
	if cfg.RespectRobots {
		f.robots = NewRobotsChecker(client, cfg.UserAgent, 0)
	}
	return f
}

// Fetch returns the body of pageURL. Network failures and 5xx responses are
// retried up to Config.Attempts times; other statuses fail immediately.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if f.robots != nil {
		allowed, err := f.robots.IsAllowed(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", pageURL, ErrDisallowed)
		}
	}

	rc := retry.DefaultConfig()
	rc.MaxAttempts = f.cfg.Attempts
	rc.IsRetryable = isRetryable

	var body []byte
	err := retry.Do(ctx, rc, func(ctx context.Context) error {
		b, err := f.get(ctx, pageURL)
		if err != nil {
			f.log.Debug("Fetch attempt failed", logger.String("url", pageURL), logger.Error(err))
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: pageURL, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%s: %w", pageURL, ErrBodyTooLarge)
	}
	return body, nil
}

func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= http.StatusInternalServerError
	}
	return retry.IsTransient(err)
}
