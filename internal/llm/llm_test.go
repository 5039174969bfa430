package llm_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/regwatch/internal/llm"
)

type echoClient struct{ name string }

func (e echoClient) Generate(_ context.Context, req llm.Request) (string, error) {
	return req.Prompt, nil
}

func (e echoClient) GenerateJSON(_ context.Context, req llm.Request) (string, error) {
	return `{"prompt":"` + req.Prompt + `"}`, nil
}

func (e echoClient) Provider() string { return e.name }

func TestRegistry(t *testing.T) {
	llm.RegisterProvider("echo-test", func(cfg llm.Config) (llm.Client, error) {
		return echoClient{name: "echo-test"}, nil
	}, "Echo-Alias")

	c, err := llm.NewClient(llm.Config{Provider: " ECHO-ALIAS "})
	require.NoError(t, err)
	assert.Equal(t, "echo-test", c.Provider())
	assert.Contains(t, llm.Providers(), "echo-alias")

	_, err = llm.NewClient(llm.Config{Provider: "nope"})
	require.ErrorIs(t, err, llm.ErrProviderNotRegistered)
}

func TestConfigHelpers(t *testing.T) {
	t.Setenv("REGWATCH_TEST_KEY", "from-env")

	cfg := llm.Config{BaseURL: "http://localhost:11434/ "}
	assert.Equal(t, "from-env", cfg.Key("REGWATCH_TEST_KEY"))
	assert.Equal(t, "http://localhost:11434", cfg.BaseURLOr("http://default"))
	assert.Equal(t, "m", cfg.ModelOr("m"))
	assert.Equal(t, 120*time.Second, cfg.HTTP().Timeout)

	cfg.APIKey = "explicit"
	assert.Equal(t, "explicit", cfg.Key("REGWATCH_TEST_KEY"))
}

func TestPostJSON_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := llm.PostJSON(context.Background(), srv.Client(), 2, srv.URL,
		map[string]string{"Authorization": "secret"}, map[string]string{"a": "b"}, &out)

	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPostJSON_ClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	var out map[string]any
	err := llm.PostJSON(context.Background(), srv.Client(), 3, srv.URL, nil, struct{}{}, &out)

	var se *llm.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.False(t, se.Transient())
	assert.Equal(t, int32(1), calls.Load())
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, llm.IsRetryable(&llm.StatusError{Code: http.StatusTooManyRequests}))
	assert.True(t, llm.IsRetryable(&llm.StatusError{Code: http.StatusBadGateway}))
	assert.False(t, llm.IsRetryable(&llm.StatusError{Code: http.StatusBadRequest}))
	assert.True(t, llm.IsRetryable(errors.New("dial tcp: connection refused")))
}
