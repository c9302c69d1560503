package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/trafficlens/backend/models"
	"github.com/trafficlens/backend/services"
)

// GetViolations handles GET /api/violations - List violations with filters
func GetViolations(c *gin.Context) {
	limit, skip, ok := pagination(c)
	if !ok {
		return
	}

	filter := services.ViolationFilter{
		Camera: c.Query("camera"),
		Limit:  limit,
		Skip:   skip,
	}

	if status := c.Query("status"); status != "" {
		vs := models.ViolationStatus(status)
		if !vs.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + status, "code": "VALIDATION_ERROR"})
			return
		}
		filter.Status = vs
	}
	if violationType := c.Query("violationType"); violationType != "" {
		vt := models.ViolationType(violationType)
		if !vt.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown violationType: " + violationType, "code": "VALIDATION_ERROR"})
			return
		}
		filter.Type = vt
	}

	violations, total, err := reviewSvc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"violations": violations,
		"total":      total,
		"limit":      limit,
		"skip":       skip,
	})
}

// GetViolation handles GET /api/violations/:id - Get single violation
func GetViolation(c *gin.Context) {
	violation, err := reviewSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, violation)
}

// VerifyViolation handles PUT /api/violations/:id/verify - review decision
func VerifyViolation(c *gin.Context) {
	var req struct {
		Status     models.ViolationStatus `json:"status" binding:"required"`
		ReviewedBy *string                `json:"reviewedBy"`
		Note       *string                `json:"note"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required", "code": "VALIDATION_ERROR"})
		return
	}

	violation, err := reviewSvc.Review(c.Request.Context(), c.Param("id"), req.Status, req.ReviewedBy, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, violation)
}

// GetViolationStats handles GET /api/violations/stats - chart breakdowns
func GetViolationStats(c *gin.Context) {
	stats, err := statsSvc.Violations(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
