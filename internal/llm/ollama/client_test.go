package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/regwatch/internal/llm"
	_ "github.com/jonesrussell/north-cloud/regwatch/internal/llm/ollama"
)

func TestGenerateJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3.1", body["model"])
		assert.Equal(t, "json", body["format"])
		assert.Equal(t, false, body["stream"])
		assert.Equal(t, "analyst", body["system"])
		assert.EqualValues(t, 512, body["options"].(map[string]any)["num_predict"])

		_, _ = w.Write([]byte(`{"response":"{\"ok\":1}\n","done":true}`))
	}))
	defer srv.Close()

	c, err := llm.NewClient(llm.Config{
		Provider: "ollama", BaseURL: srv.URL, Model: "llama3.1", MaxOutputTokens: 512, HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	out, err := c.GenerateJSON(context.Background(), llm.Request{System: "analyst", Prompt: "diff"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":1}`, out)
}

func TestGenerate_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := llm.NewClient(llm.Config{Provider: "ollama", BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), llm.Request{Prompt: "hi"})
	var se *llm.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
}
