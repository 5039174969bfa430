package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/regwatch/internal/domain"
	"github.com/jonesrussell/north-cloud/regwatch/internal/logger"
	"github.com/jonesrussell/north-cloud/regwatch/internal/store"
)

type sourceHandler struct {
	reader Reader
}

func newSourceHandler(reader Reader) *sourceHandler {
	return &sourceHandler{reader: reader}
}

// versionSummary is a history entry without its content.
type versionSummary struct {
	VersionNo            int       `json:"version"`
	Fingerprint          string    `json:"fingerprint"`
	CapturedAt           time.Time `json:"captured_at"`
	Chars                int       `json:"chars"`
	Meaningful           bool      `json:"meaningful"`
	RegenerationRequired bool      `json:"regeneration_required"`
}

func summarize(v domain.Version) versionSummary {
	return versionSummary{
		VersionNo:            v.VersionNo,
		Fingerprint:          v.Fingerprint,
		CapturedAt:           v.CapturedAt,
		Chars:                len([]rune(v.Content)),
		Meaningful:           v.Verdict.Meaningful(),
		RegenerationRequired: v.Verdict != nil && v.Verdict.RegenerationRequired,
	}
}

func (h *sourceHandler) List(c *gin.Context) {
	sources, err := h.reader.ListSources(c.Request.Context())
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("Failed to list sources", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"count":   len(sources),
	})
}

func (h *sourceHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	src, err := h.reader.GetSource(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to get source", logger.Int64("source_id", id))
		return
	}
	c.JSON(http.StatusOK, src)
}

func (h *sourceHandler) ListVersions(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.reader.GetSource(ctx, id); err != nil {
		h.fail(c, err, "Failed to get source", logger.Int64("source_id", id))
		return
	}

	versions, err := h.reader.ListVersions(ctx, id)
	if err != nil {
		h.fail(c, err, "Failed to list versions", logger.Int64("source_id", id))
		return
	}

	out := make([]versionSummary, 0, len(versions))
	for _, v := range versions {
		out = append(out, summarize(v))
	}
	c.JSON(http.StatusOK, gin.H{
		"versions": out,
		"count":    len(out),
	})
}

func (h *sourceHandler) GetVersion(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	n, err := strconv.Atoi(c.Param("version"))
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid version number"})
		return
	}

	v, err := h.reader.GetVersion(c.Request.Context(), id, n)
	if err != nil {
		h.fail(c, err, "Failed to get version", logger.Int64("source_id", id), logger.Int("version", n))
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *sourceHandler) fail(c *gin.Context, err error, msg string, fields ...logger.Field) {
	switch {
	case errors.Is(err, store.ErrSourceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
	case errors.Is(err, store.ErrVersionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Version not found"})
	default:
		logger.FromContext(c.Request.Context()).Error(msg, append(fields, logger.Error(err))...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid source id"})
		return 0, false
	}
	return id, true
}
