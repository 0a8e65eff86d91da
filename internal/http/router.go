// Package http exposes the raster pipeline over a Gin API.
package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router. An empty origin list
// allows all origins.
func SetupRouter(handler *Handler, allowedOrigins []string) *gin.Engine {

	router := gin.Default()

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	// API v1 routes.
	v1 := router.Group("/v1")

	rasters := v1.Group("/rasters")
	rasters.GET("/frame", handler.GetFrame)
	rasters.GET("/frames", handler.GetFrames)

	v1.GET("/export", handler.Export)
	v1.GET("/radar/overlay", handler.GetRadarOverlay)

	// Health check.
	router.GET("/health", handler.HealthCheck)

	return router
}
