// Package router builds the gin engine and registers the service routes.
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/pharmakb/pharmakb/internal/pharmakb/handler"
)

// requestIDHeader carries the request id in and out of the service.
const requestIDHeader = "X-Request-ID"

// New builds the gin engine with middleware and all routes registered.
func New(h *handler.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(requestID(), requestLogger(), gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1")
	{
		guidelines := v1.Group("/guidelines")
		{
			guidelines.POST("/ingest", h.Ingest)
			guidelines.GET("/status", h.IngestStatus)
			guidelines.GET("", h.ListGuidelines)
		}

		v1.POST("/query", h.Query)

		catalog := v1.Group("/catalog")
		{
			catalog.GET("/genes", h.CatalogGenes)
			catalog.GET("/drugs", h.CatalogDrugs)
			catalog.GET("/pairs", h.CatalogPairs)
		}

		phenotype := v1.Group("/phenotype")
		{
			phenotype.POST("", h.Phenotype)
			phenotype.GET("/genes", h.PhenotypeGenes)
			phenotype.GET("/diplotypes/:gene", h.PhenotypeDiplotypes)
		}

		v1.GET("/stats", h.Stats)
	}

	return engine
}

// requestID assigns a request id when the client did not send one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("request_id", rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}

// requestLogger logs one line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Infow("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString("request_id"),
		)
	}
}
