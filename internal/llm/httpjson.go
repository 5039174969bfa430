package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonesrussell/north-cloud/regwatch/internal/retry"
)

const maxErrorBody = 512

// StatusError is a non-2xx response from a completion endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: status %d: %s", e.Code, e.Body)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// IsRetryable retries rate limits, server errors and network failures.
func IsRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return retry.IsTransient(err)
}

// PostJSON marshals payload, POSTs it to url with headers, and decodes the
// response into out, retrying transient failures up to attempts times.
func PostJSON(
	ctx context.Context,
	hc *http.Client,
	attempts int,
	url string,
	headers map[string]string,
	payload, out any,
) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	cfg := retry.Config{
		MaxAttempts:  attempts,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		IsRetryable:  IsRetryable,
	}

	var raw []byte
	err = retry.Do(ctx, cfg, func(ctx context.Context) error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, doErr := hc.Do(req)
		if doErr != nil {
			return doErr
		}
		defer resp.Body.Close()

		b, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("read response: %w", readErr)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			if len(b) > maxErrorBody {
				b = b[:maxErrorBody]
			}
			return &StatusError{Code: resp.StatusCode, Body: string(b)}
		}
		raw = b
		return nil
	})
	if err != nil {
		return err
	}

	if err = json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
