package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/stratamine/qms/internal/qms/service"
)

// NotificationHandler exposes the in-app notification feed.
type NotificationHandler struct {
	svc *service.NotificationService
}

// NewNotificationHandler creates the notification handler.
func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	notifications, err := h.svc.ListForUser(c.Request.Context(), GetUserID(c),
		c.Query("unread") == "true")
	if err != nil {
		InternalError(c, "Failed to list notifications: "+err.Error())
		return
	}
	Success(c, gin.H{"items": notifications})
}

// MarkRead handles POST /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.svc.MarkRead(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		InternalError(c, "Failed to mark notification read: "+err.Error())
		return
	}
	Success(c, nil)
}

// MarkAllRead handles POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.svc.MarkAllRead(c.Request.Context(), GetUserID(c)); err != nil {
		InternalError(c, "Failed to mark notifications read: "+err.Error())
		return
	}
	Success(c, nil)
}
