package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/stratamine/qms/internal/qms/repository"
	"github.com/stratamine/qms/internal/qms/service"
)

// ModerationHandler exposes content flags.
type ModerationHandler struct {
	svc *service.ModerationService
}

// NewModerationHandler creates the moderation handler.
func NewModerationHandler(svc *service.ModerationService) *ModerationHandler {
	return &ModerationHandler{svc: svc}
}

// Flag handles POST /api/v1/moderation/flags
func (h *ModerationHandler) Flag(c *gin.Context) {
	var req service.FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	flag, err := h.svc.Flag(c.Request.Context(), GetSiteID(c), GetUserID(c), req)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	Created(c, flag)
}

// List handles GET /api/v1/moderation/flags
func (h *ModerationHandler) List(c *gin.Context) {
	flags, err := h.svc.List(c.Request.Context(), GetSiteID(c), c.Query("status"))
	if err != nil {
		InternalError(c, "Failed to list flags: "+err.Error())
		return
	}
	Success(c, gin.H{"items": flags})
}

// Resolve handles POST /api/v1/moderation/flags/:id/resolve
func (h *ModerationHandler) Resolve(c *gin.Context) {
	var req struct {
		Status     string `json:"status" binding:"required"`
		Resolution string `json:"resolution"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	flag, err := h.svc.Resolve(c.Request.Context(), GetSiteID(c), c.Param("id"),
		GetUserID(c), req.Status, req.Resolution)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "Flag not found")
			return
		}
		BadRequest(c, err.Error())
		return
	}
	Success(c, flag)
}
