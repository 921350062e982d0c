package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/stratamine/qms/internal/qms/repository"
	"github.com/stratamine/qms/internal/qms/service"
)

// UserHandler serves the site user and department directories.
type UserHandler struct {
	svc *service.UserService
}

// NewUserHandler creates the user handler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// List handles GET /api/v1/users?role=xxx
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.svc.List(c.Request.Context(), GetSiteID(c), c.Query("role"))
	if err != nil {
		InternalError(c, "Failed to list users: "+err.Error())
		return
	}
	Success(c, users)
}

// Get handles GET /api/v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.svc.Get(c.Request.Context(), GetSiteID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "User not found")
			return
		}
		InternalError(c, "Failed to load user: "+err.Error())
		return
	}
	Success(c, user)
}

// Departments handles GET /api/v1/departments
func (h *UserHandler) Departments(c *gin.Context) {
	departments, err := h.svc.Departments(c.Request.Context(), GetSiteID(c))
	if err != nil {
		InternalError(c, "Failed to list departments: "+err.Error())
		return
	}
	Success(c, departments)
}

// Roles handles GET /api/v1/roles
func (h *UserHandler) Roles(c *gin.Context) {
	Success(c, h.svc.Roles())
}
