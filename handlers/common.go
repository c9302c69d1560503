// Package handlers exposes the review workflow over HTTP
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/trafficlens/backend/services"
	"gorm.io/gorm"
)

var (
	reviewSvc  *services.ReviewService
	challanSvc *services.ChallanService
	statsSvc   *services.StatsService
)

// Init wires the domain services into the handler package. pub may be nil
// when no event bus is running (tests, offline tools).
func Init(db *gorm.DB, pub services.Publisher) {
	reviewSvc = services.NewReviewService(db, pub)
	challanSvc = services.NewChallanService(db, pub)
	statsSvc = services.NewStatsService(db)
}

// respondError maps domain errors onto the stable external taxonomy.
// Nothing is swallowed into an empty success.
func respondError(c *gin.Context, err error) {
	var te *services.TransitionError
	switch {
	case errors.As(err, &te):
		c.JSON(http.StatusConflict, gin.H{
			"error":           te.Error(),
			"code":            "INVALID_TRANSITION",
			"currentStatus":   te.Current,
			"attemptedStatus": te.Attempted,
		})
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION_ERROR"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "NOT_FOUND"})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "CONFLICT"})
	case errors.Is(err, services.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "code": "UNAVAILABLE"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": "INTERNAL"})
	}
}

// pagination reads limit/skip query params, rejecting negatives
func pagination(c *gin.Context) (limit, skip int, ok bool) {
	limit, skip = 50, 0
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer", "code": "VALIDATION_ERROR"})
			return 0, 0, false
		}
		limit = parsed
	}
	if skipStr := c.Query("skip"); skipStr != "" {
		parsed, err := strconv.Atoi(skipStr)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "skip must be a non-negative integer", "code": "VALIDATION_ERROR"})
			return 0, 0, false
		}
		skip = parsed
	}
	return limit, skip, true
}
