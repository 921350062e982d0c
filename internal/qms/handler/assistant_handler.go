package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/stratamine/qms/internal/qms/service"
)

// AssistantHandler exposes the Edith chat assistant.
type AssistantHandler struct {
	svc *service.AssistantService
}

// NewAssistantHandler creates the assistant handler.
func NewAssistantHandler(svc *service.AssistantService) *AssistantHandler {
	return &AssistantHandler{svc: svc}
}

// Chat handles POST /api/v1/assistant/chat
func (h *AssistantHandler) Chat(c *gin.Context) {
	if !h.svc.Enabled() {
		Error(c, 50300, "Assistant is not configured")
		return
	}

	var req struct {
		Message string             `json:"message" binding:"required"`
		History []service.ChatTurn `json:"history"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	reply, err := h.svc.Chat(c.Request.Context(), GetSiteID(c), GetActor(c), req.History, req.Message)
	if err != nil {
		InternalError(c, "Assistant failed: "+err.Error())
		return
	}
	Success(c, gin.H{"reply": reply})
}
