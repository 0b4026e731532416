package http

import (
	"github.com/gin-gonic/gin"
	"github.com/pricewatch/crawler/config"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		checks := v1.Group("/checks")
		{
			checks.POST("", handler.StartCheck)
			checks.GET("", handler.GetCheck)
			checks.DELETE("", handler.CloseCheck)
			checks.POST("/overrides", handler.SubmitOverride)
			checks.GET("/events", handler.StreamEvents)
		}

		v1.GET("/adapters", handler.ListAdapters)
	}

	return router
}
