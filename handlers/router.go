package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter builds the gin engine with all routes. Init must have been
// called first.
func SetupRouter() *gin.Engine {
	router := gin.Default()

	// CORS middleware
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Ingest-Token"}
	router.Use(cors.New(config))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// WebSocket route for live review events (outside /api group)
	router.GET("/ws/feeds", HandleFeedWebSocket)

	// API Routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", Login)

		// Feed hub stats
		api.GET("/feeds/stats", GetFeedHubStats)

		// Dashboard stats
		api.GET("/stats", GetDashboardStats)

		// Ingestion boundary (detection service)
		detections := api.Group("/detections", IngestAuthMiddleware())
		{
			detections.POST("/ingest", IngestDetections)
		}
		api.GET("/jobs/:id", GetJob)

		// Camera registry
		api.GET("/cameras", GetCameras)

		// Violations routes
		violations := api.Group("/violations")
		{
			violations.GET("", GetViolations)
			violations.GET("/stats", GetViolationStats)
			violations.GET("/:id", GetViolation)
			violations.PUT("/:id/verify", AuthMiddleware(), VerifyViolation)
		}

		// Challans routes
		challans := api.Group("/challans")
		{
			challans.GET("", GetChallans)
			challans.GET("/:id", GetChallan)
			challans.POST("/generate", AuthMiddleware(), GenerateChallan)
			challans.PATCH("/:id/status", AuthMiddleware(), UpdateChallanStatus)
		}
	}

	return router
}
