package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/trafficlens/backend/models"
	"github.com/trafficlens/backend/services"
)

// GetChallans handles GET /api/challans - List challans with filters
func GetChallans(c *gin.Context) {
	limit, skip, ok := pagination(c)
	if !ok {
		return
	}

	filter := services.ChallanFilter{Limit: limit, Skip: skip}
	if status := c.Query("status"); status != "" {
		cs := models.ChallanStatus(status)
		if !cs.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + status, "code": "VALIDATION_ERROR"})
			return
		}
		filter.Status = cs
	}

	challans, total, err := challanSvc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"challans": challans,
		"total":    total,
		"limit":    limit,
		"skip":     skip,
	})
}

// GetChallan handles GET /api/challans/:id - Get single challan
func GetChallan(c *gin.Context) {
	challan, err := challanSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, challan)
}

// GenerateChallan handles POST /api/challans/generate - issue a challan
// against a verified violation
func GenerateChallan(c *gin.Context) {
	var req services.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "code": "VALIDATION_ERROR"})
		return
	}

	challan, err := challanSvc.Issue(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "challan": challan})
}

// UpdateChallanStatus handles PATCH /api/challans/:id/status
func UpdateChallanStatus(c *gin.Context) {
	var req struct {
		Status       models.ChallanStatus `json:"status" binding:"required"`
		CancelReason *string              `json:"cancelReason"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required", "code": "VALIDATION_ERROR"})
		return
	}

	challan, err := challanSvc.SetStatus(c.Request.Context(), c.Param("id"), req.Status, req.CancelReason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, challan)
}
