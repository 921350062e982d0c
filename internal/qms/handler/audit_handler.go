package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/stratamine/qms/internal/qms/repository"
	"github.com/stratamine/qms/internal/qms/service"
)

// AuditHandler exposes internal audits.
type AuditHandler struct {
	svc *service.AuditService
}

// NewAuditHandler creates the audit handler.
func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// Create handles POST /api/v1/audits
func (h *AuditHandler) Create(c *gin.Context) {
	var req service.CreateAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	audit, err := h.svc.Create(c.Request.Context(), GetSiteID(c), req)
	if err != nil {
		InternalError(c, "Failed to create audit: "+err.Error())
		return
	}
	Created(c, audit)
}

// List handles GET /api/v1/audits
func (h *AuditHandler) List(c *gin.Context) {
	audits, err := h.svc.List(c.Request.Context(), GetSiteID(c), c.Query("status"))
	if err != nil {
		InternalError(c, "Failed to list audits: "+err.Error())
		return
	}
	Success(c, gin.H{"items": audits})
}

// Get handles GET /api/v1/audits/:id
func (h *AuditHandler) Get(c *gin.Context) {
	audit, err := h.svc.Get(c.Request.Context(), GetSiteID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "Audit not found")
			return
		}
		InternalError(c, "Failed to load audit: "+err.Error())
		return
	}
	Success(c, audit)
}

// UpdateStatus handles PATCH /api/v1/audits/:id/status
func (h *AuditHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status  string `json:"status" binding:"required"`
		Summary string `json:"summary"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	audit, err := h.svc.UpdateStatus(c.Request.Context(), GetSiteID(c), c.Param("id"), req.Status, req.Summary)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "Audit not found")
			return
		}
		BadRequest(c, err.Error())
		return
	}
	Success(c, audit)
}

// AddFinding handles POST /api/v1/audits/:id/findings
func (h *AuditHandler) AddFinding(c *gin.Context) {
	var req service.AddFindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	finding, err := h.svc.AddFinding(c.Request.Context(), GetSiteID(c), c.Param("id"), GetUserID(c), req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "Audit not found")
			return
		}
		BadRequest(c, err.Error())
		return
	}
	Created(c, finding)
}
