package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/stratamine/qms/internal/qms/service"
)

// DashboardHandler exposes site statistics.
type DashboardHandler struct {
	svc *service.DashboardService
}

// NewDashboardHandler creates the dashboard handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// Stats handles GET /api/v1/dashboard/stats
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.svc.SiteStats(c.Request.Context(), GetSiteID(c))
	if err != nil {
		InternalError(c, "Failed to load stats: "+err.Error())
		return
	}
	Success(c, stats)
}
