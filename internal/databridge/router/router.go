// Package router wires the DataBridge HTTP routes.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/databridge/internal/databridge/handler"
	"github.com/kart-io/databridge/internal/databridge/middleware"
)

// Register registers the DataBridge routes on the engine.
func Register(engine *gin.Engine, h *handler.Handler, authn *middleware.Authenticator) {
	logger.Info("Registering DataBridge routes...")

	engine.GET("/healthz", h.Healthz)
	engine.GET("/healthz/ready", h.Ready)

	// Token minting skips the auth group but the handler rejects the
	// request outside dev mode.
	engine.POST("/v1/auth/dev-token", h.MintDevToken)

	v1 := engine.Group("/v1", authn.Auth())
	{
		ingest := v1.Group("/ingest")
		{
			ingest.POST("/text", h.IngestText)
			ingest.POST("/file", h.IngestFile)
		}

		retrieve := v1.Group("/retrieve")
		{
			retrieve.POST("/chunks", h.RetrieveChunks)
			retrieve.POST("/docs", h.RetrieveDocs)
		}

		v1.POST("/query", h.Query)

		docs := v1.Group("/documents")
		{
			docs.GET("", h.ListDocuments)
			docs.GET("/:id", h.GetDocument)
			docs.PATCH("/:id", h.UpdateDocumentMetadata)
			docs.DELETE("/:id", h.DeleteDocument)
		}

		usage := v1.Group("/usage")
		{
			usage.GET("/stats", h.UsageStats)
			usage.GET("/recent", h.UsageRecent)
		}

		caches := v1.Group("/caches")
		{
			caches.POST("", h.CreateCache)
			caches.GET("/:name", h.LoadCache)
			caches.POST("/:name/update", h.UpdateCache)
			caches.POST("/:name/docs", h.AddDocsToCache)
			caches.POST("/:name/query", h.QueryCache)
		}
	}

	logger.Info("HTTP routes registered")
}
