// Package api serves the stored regulation history over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/regwatch/internal/domain"
	"github.com/jonesrussell/north-cloud/regwatch/internal/logger"
)

// Reader is the read side of the version store.
type Reader interface {
	ListSources(ctx context.Context) ([]domain.Source, error)
	GetSource(ctx context.Context, id int64) (*domain.Source, error)
	ListVersions(ctx context.Context, sourceID int64) ([]domain.Version, error)
	GetVersion(ctx context.Context, sourceID int64, n int) (*domain.Version, error)
}

// NewRouter wires the read-only API. metrics may be nil. An empty apiKey
// leaves /api/v1 open.
func NewRouter(reader Reader, metrics http.Handler, apiKey string, log logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(recoveryMiddleware(log))
	router.Use(requestIDMiddleware(log))
	router.Use(loggerMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := router.Group("/api/v1")
	if apiKey != "" {
		v1.Use(apiKeyMiddleware(apiKey))
	}

	h := newSourceHandler(reader)
	sources := v1.Group("/sources")
	sources.GET("", h.List)
	sources.GET("/:id", h.Get)
	sources.GET("/:id/versions", h.ListVersions)
	sources.GET("/:id/versions/:version", h.GetVersion)

	return router
}
