package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/stratamine/qms/internal/qms/entity"
	"github.com/stratamine/qms/internal/qms/repository"
	"github.com/stratamine/qms/internal/qms/service"
)

// SurveyHandler exposes surveys and responses.
type SurveyHandler struct {
	svc *service.SurveyService
}

// NewSurveyHandler creates the survey handler.
func NewSurveyHandler(svc *service.SurveyService) *SurveyHandler {
	return &SurveyHandler{svc: svc}
}

// Create handles POST /api/v1/surveys
func (h *SurveyHandler) Create(c *gin.Context) {
	var req service.CreateSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	survey, err := h.svc.Create(c.Request.Context(), GetSiteID(c), GetUserID(c), req)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	Created(c, survey)
}

// List handles GET /api/v1/surveys
func (h *SurveyHandler) List(c *gin.Context) {
	surveys, err := h.svc.List(c.Request.Context(), GetSiteID(c), c.Query("status"))
	if err != nil {
		InternalError(c, "Failed to list surveys: "+err.Error())
		return
	}
	Success(c, gin.H{"items": surveys})
}

// Get handles GET /api/v1/surveys/:id
func (h *SurveyHandler) Get(c *gin.Context) {
	survey, err := h.svc.Get(c.Request.Context(), GetSiteID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "Survey not found")
			return
		}
		InternalError(c, "Failed to load survey: "+err.Error())
		return
	}
	Success(c, survey)
}

// SetStatus handles PATCH /api/v1/surveys/:id/status
func (h *SurveyHandler) SetStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	survey, err := h.svc.SetStatus(c.Request.Context(), GetSiteID(c), c.Param("id"), req.Status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "Survey not found")
			return
		}
		BadRequest(c, err.Error())
		return
	}
	Success(c, survey)
}

// SubmitResponse handles POST /api/v1/surveys/:id/responses
func (h *SurveyHandler) SubmitResponse(c *gin.Context) {
	var req struct {
		Answers   entity.JSONB `json:"answers" binding:"required"`
		Anonymous bool         `json:"anonymous"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	respondentID := GetUserID(c)
	if req.Anonymous {
		respondentID = ""
	}

	response, err := h.svc.SubmitResponse(c.Request.Context(), GetSiteID(c), c.Param("id"), respondentID, req.Answers)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "Survey not found")
			return
		}
		BadRequest(c, err.Error())
		return
	}
	Created(c, response)
}

// Responses handles GET /api/v1/surveys/:id/responses
func (h *SurveyHandler) Responses(c *gin.Context) {
	responses, err := h.svc.Responses(c.Request.Context(), GetSiteID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "Survey not found")
			return
		}
		InternalError(c, "Failed to list responses: "+err.Error())
		return
	}
	Success(c, gin.H{"items": responses})
}
