package handlers

import (
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/trafficlens/backend/database"
	"github.com/trafficlens/backend/models"
	"github.com/trafficlens/backend/services"
	"gorm.io/gorm"
)

// IngestAuthMiddleware guards the ingestion boundary with the shared
// detection-service credential. No token configured means open ingestion
// (local development).
func IngestAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := os.Getenv("INGEST_TOKEN")
		if expected == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-Ingest-Token") != expected {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid ingest token"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// IngestDetections handles POST /api/detections/ingest - batch of raw
// detections from one processed video job
func IngestDetections(c *gin.Context) {
	var req services.DetectionBatch
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("❌ [INGEST] Bad request from %s: %v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "code": "VALIDATION_ERROR"})
		return
	}
	if len(req.Detections) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "detections batch is empty", "code": "VALIDATION_ERROR"})
		return
	}

	result, err := reviewSvc.IngestBatch(c.Request.Context(), req.JobID, req.Source, req.Detections)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":         true,
		"jobId":           result.Job.ID,
		"violations":      result.Violations,
		"totalViolations": result.Job.Accepted,
		"rejected":        result.Job.Rejected,
		"errors":          result.Errors,
	})
}

// GetJob handles GET /api/jobs/:id - outcome of one detection batch
func GetJob(c *gin.Context) {
	var job models.DetectionJob
	if err := database.DB.WithContext(c.Request.Context()).First(&job, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found", "code": "NOT_FOUND"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "code": "UNAVAILABLE"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetCameras handles GET /api/cameras - camera registry with heartbeats
func GetCameras(c *gin.Context) {
	var cameras []models.Camera
	if err := database.DB.WithContext(c.Request.Context()).Order("id").Find(&cameras).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "code": "UNAVAILABLE"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cameras": cameras, "total": len(cameras)})
}
