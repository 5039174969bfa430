package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/regwatch/internal/api"
	"github.com/jonesrussell/north-cloud/regwatch/internal/domain"
	"github.com/jonesrussell/north-cloud/regwatch/internal/logger"
	"github.com/jonesrussell/north-cloud/regwatch/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeReader struct {
	sources  []domain.Source
	versions map[int64][]domain.Version
	err      error
}

func (f *fakeReader) ListSources(context.Context) ([]domain.Source, error) {
	return f.sources, f.err
}

func (f *fakeReader) GetSource(_ context.Context, id int64) (*domain.Source, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.sources {
		if f.sources[i].ID == id {
			return &f.sources[i], nil
		}
	}
	return nil, store.ErrSourceNotFound
}

func (f *fakeReader) ListVersions(_ context.Context, id int64) ([]domain.Version, error) {
	return f.versions[id], f.err
}

func (f *fakeReader) GetVersion(_ context.Context, id int64, n int) (*domain.Version, error) {
	for _, v := range f.versions[id] {
		if v.VersionNo == n {
			return &v, nil
		}
	}
	return nil, store.ErrVersionNotFound
}

func newReader() *fakeReader {
	captured := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	return &fakeReader{
		sources: []domain.Source{
			{ID: 1, Authority: "FINTRAC", Label: "MSB Obligations", URL: "https://fintrac-canafe.canada.ca/msb-esm/msb-eng", CurrentVersion: 2},
		},
		versions: map[int64][]domain.Version{
			1: {
				{SourceID: 1, VersionNo: 2, Content: "new text", Fingerprint: "bb", CapturedAt: captured,
					Verdict: &domain.ChangeVerdict{IsMeaningfulChange: true, RegenerationRequired: true, Reason: "new rule"}},
				{SourceID: 1, VersionNo: 1, Content: "old", Fingerprint: "aa", CapturedAt: captured.Add(-24 * time.Hour)},
			},
		},
	}
}

func do(t *testing.T, h http.Handler, path string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
	}
	return rec, body
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	r := api.NewRouter(newReader(), nil, "secret", logger.NewNop())
	rec, body := do(t, r, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("regwatch_runs_total 1\n"))
	})
	r := api.NewRouter(newReader(), metrics, "", logger.NewNop())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "regwatch_runs_total")
}

func TestRouter_APIKey(t *testing.T) {
	t.Parallel()

	r := api.NewRouter(newReader(), nil, "secret", logger.NewNop())

	rec, _ := do(t, r, "/api/v1/sources", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, r, "/api/v1/sources", map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, r, "/api/v1/sources", map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, r, "/api/v1/sources", map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Sources(t *testing.T) {
	t.Parallel()

	r := api.NewRouter(newReader(), nil, "", logger.NewNop())

	rec, body := do(t, r, "/api/v1/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 1, body["count"], 0)

	rec, body = do(t, r, "/api/v1/sources/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MSB Obligations", body["label"])

	rec, _ = do(t, r, "/api/v1/sources/9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, r, "/api/v1/sources/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Versions(t *testing.T) {
	t.Parallel()

	r := api.NewRouter(newReader(), nil, "", logger.NewNop())

	rec, body := do(t, r, "/api/v1/sources/1/versions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	versions, ok := body["versions"].([]any)
	require.True(t, ok)
	require.Len(t, versions, 2)
	latest := versions[0].(map[string]any)
	assert.InDelta(t, 2, latest["version"], 0)
	assert.Equal(t, true, latest["meaningful"])
	assert.NotContains(t, latest, "content")

	rec, _ = do(t, r, "/api/v1/sources/9/versions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, r, "/api/v1/sources/1/versions/2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new text", body["content"])
	verdict, ok := body["verdict"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "new rule", verdict["reason"])

	rec, _ = do(t, r, "/api/v1/sources/1/versions/7", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, r, "/api/v1/sources/1/versions/0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_StoreFailure(t *testing.T) {
	t.Parallel()

	reader := newReader()
	reader.err = errors.New("connection refused")
	r := api.NewRouter(reader, nil, "", logger.NewNop())

	rec, body := do(t, r, "/api/v1/sources", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to list sources", body["error"])
}

func TestRouter_RequestID(t *testing.T) {
	t.Parallel()

	r := api.NewRouter(newReader(), nil, "", logger.NewNop())

	rec, _ := do(t, r, "/health", nil)
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)

	rec, _ = do(t, r, "/health", map[string]string{"X-Request-ID": "upstream-123"})
	assert.Equal(t, "upstream-123", rec.Header().Get("X-Request-ID"))
}
