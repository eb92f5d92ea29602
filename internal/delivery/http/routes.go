package http

import (
	"github.com/gin-gonic/gin"
	"github.com/pricetracker/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware())

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	v1.Use(BodyLimitMiddleware(cfg.Server.MaxBodyBytes))
	{
		v1.POST("/ingest", handler.Ingest)
		v1.POST("/regroup", handler.Regroup)
		v1.POST("/groups/recompute", handler.RecomputeAggregates)

		// Rule debugging
		v1.POST("/normalize", handler.Normalize)
		v1.POST("/compare", handler.Compare)
	}

	return router
}
