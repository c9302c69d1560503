package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetDashboardStats handles GET /api/stats - Dashboard summary block
func GetDashboardStats(c *gin.Context) {
	stats, err := statsSvc.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
