package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/stratamine/qms/internal/qms/entity"
	"github.com/stratamine/qms/internal/qms/export"
	"github.com/stratamine/qms/internal/qms/repository"
	"github.com/stratamine/qms/internal/qms/service"
	"github.com/stratamine/qms/internal/qms/workflow"
)

// NCHandler exposes the NC lifecycle over HTTP.
type NCHandler struct {
	svc *service.NCService
}

// NewNCHandler creates the NC handler.
func NewNCHandler(svc *service.NCService) *NCHandler {
	return &NCHandler{svc: svc}
}

// Create handles POST /api/v1/ncs
func (h *NCHandler) Create(c *gin.Context) {
	var req service.CreateNCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	nc, err := h.svc.Create(c.Request.Context(), GetSiteID(c), GetUserID(c), req)
	if err != nil {
		InternalError(c, "Failed to create NC: "+err.Error())
		return
	}
	Created(c, nc)
}

// List handles GET /api/v1/ncs
func (h *NCHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filter := repository.NCFilter{
		Status:             c.Query("status"),
		RiskClassification: c.Query("risk_classification"),
		DepartmentID:       c.Query("department_id"),
		ResponsiblePerson:  c.Query("responsible_person"),
		ReportedBy:         c.Query("reported_by"),
		OverdueOnly:        c.Query("overdue") == "true",
		Search:             c.Query("search"),
		Page:               page,
		PageSize:           pageSize,
	}

	ncs, total, err := h.svc.List(c.Request.Context(), GetSiteID(c), filter)
	if err != nil {
		InternalError(c, "Failed to list NCs: "+err.Error())
		return
	}
	Success(c, ListResponse{
		Items: ncs,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages(total, pageSize),
		},
	})
}

// Get handles GET /api/v1/ncs/:id
func (h *NCHandler) Get(c *gin.Context) {
	nc, err := h.svc.Get(c.Request.Context(), GetSiteID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "NC not found")
			return
		}
		InternalError(c, "Failed to load NC: "+err.Error())
		return
	}
	Success(c, nc)
}

// Classify handles POST /api/v1/ncs/:id/classify
func (h *NCHandler) Classify(c *gin.Context) {
	var req service.ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	nc, err := h.svc.Classify(c.Request.Context(), GetSiteID(c), c.Param("id"),
		GetActor(c), idempotencyKey(c), req)
	if err != nil {
		writeTransitionError(c, err)
		return
	}
	Success(c, nc)
}

// SubmitResponse handles POST /api/v1/ncs/:id/response
func (h *NCHandler) SubmitResponse(c *gin.Context) {
	var req service.SubmitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	nc, err := h.svc.SubmitResponse(c.Request.Context(), GetSiteID(c), c.Param("id"),
		GetActor(c), idempotencyKey(c), req)
	if err != nil {
		writeTransitionError(c, err)
		return
	}
	Success(c, nc)
}

// Decide handles POST /api/v1/ncs/:id/decision
func (h *NCHandler) Decide(c *gin.Context) {
	var req service.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	nc, err := h.svc.Decide(c.Request.Context(), GetSiteID(c), c.Param("id"),
		GetActor(c), idempotencyKey(c), req)
	if err != nil {
		writeTransitionError(c, err)
		return
	}
	Success(c, nc)
}

// Verify handles POST /api/v1/ncs/:id/verify
func (h *NCHandler) Verify(c *gin.Context) {
	var req service.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	nc, err := h.svc.Verify(c.Request.Context(), GetSiteID(c), c.Param("id"),
		GetActor(c), idempotencyKey(c), req)
	if err != nil {
		writeTransitionError(c, err)
		return
	}
	Success(c, nc)
}

// History handles GET /api/v1/ncs/:id/history
func (h *NCHandler) History(c *gin.Context) {
	history, approvals, err := h.svc.History(c.Request.Context(), GetSiteID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "NC not found")
			return
		}
		InternalError(c, "Failed to load history: "+err.Error())
		return
	}
	Success(c, gin.H{
		"workflow_history": history,
		"approvals":        approvals,
	})
}

// Activity handles GET /api/v1/ncs/:id/activity
func (h *NCHandler) Activity(c *gin.Context) {
	logs, err := h.svc.Activity(c.Request.Context(), GetSiteID(c), c.Param("id"))
	if err != nil {
		InternalError(c, "Failed to load activity: "+err.Error())
		return
	}
	Success(c, gin.H{"items": logs})
}

// FieldLocks handles GET /api/v1/ncs/:id/field-locks
func (h *NCHandler) FieldLocks(c *gin.Context) {
	locks, nc, err := h.svc.FieldLocks(c.Request.Context(), GetSiteID(c), c.Param("id"), GetActor(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "NC not found")
			return
		}
		InternalError(c, "Failed to compute field locks: "+err.Error())
		return
	}
	Success(c, gin.H{
		"locks":        locks,
		"status":       nc.Status,
		"current_step": nc.CurrentStep,
		"step_label":   workflow.StepDescription(nc.CurrentStep),
	})
}

// Export handles GET /api/v1/ncs/export
func (h *NCHandler) Export(c *gin.Context) {
	siteID := GetSiteID(c)
	filter := repository.NCFilter{
		Status:             c.Query("status"),
		RiskClassification: c.Query("risk_classification"),
		PageSize:           100,
	}

	var ncs []entity.NonConformance
	for page := 1; ; page++ {
		filter.Page = page
		batch, total, err := h.svc.List(c.Request.Context(), siteID, filter)
		if err != nil {
			InternalError(c, "Failed to load NCs: "+err.Error())
			return
		}
		ncs = append(ncs, batch...)
		if int64(len(ncs)) >= total || len(batch) == 0 {
			break
		}
	}

	f, fileName, err := export.BuildNCRegister(siteID, ncs)
	if err != nil {
		InternalError(c, "Failed to build export: "+err.Error())
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	if err := f.Write(c.Writer); err != nil {
		// Headers are out; nothing recoverable.
		_ = err
	}
}

func idempotencyKey(c *gin.Context) string {
	return c.GetHeader("X-Idempotency-Key")
}

// writeTransitionError maps workflow and persistence errors to HTTP codes.
func writeTransitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, "NC not found")
	case errors.Is(err, workflow.ErrUnauthorized):
		Forbidden(c, err.Error())
	case errors.Is(err, workflow.ErrValidation):
		BadRequest(c, err.Error())
	case errors.Is(err, workflow.ErrInvalidTransition):
		Conflict(c, err.Error())
	case errors.Is(err, repository.ErrStaleSnapshot):
		Conflict(c, "The NC changed while you were working; reload and try again")
	case errors.Is(err, service.ErrDuplicateRequest):
		Conflict(c, "This request was already processed")
	default:
		InternalError(c, "Transition failed: "+err.Error())
	}
}
