package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stratamine/qms/internal/qms/service"
	"github.com/stratamine/qms/internal/qms/sse"
	"github.com/stratamine/qms/internal/qms/workflow"
)

// Handlers bundles all HTTP handlers.
type Handlers struct {
	Auth         *AuthHandler
	User         *UserHandler
	NC           *NCHandler
	Notification *NotificationHandler
	Audit        *AuditHandler
	Survey       *SurveyHandler
	Moderation   *ModerationHandler
	Dashboard    *DashboardHandler
	Assistant    *AssistantHandler
	Upload       *UploadHandler
	SSE          *SSEHandler
}

// NewHandlers creates the handler set.
func NewHandlers(svc *service.Services, hub *sse.Hub) *Handlers {
	return &Handlers{
		Auth:         NewAuthHandler(svc.Auth),
		User:         NewUserHandler(svc.User),
		NC:           NewNCHandler(svc.NC),
		Notification: NewNotificationHandler(svc.Notification),
		Audit:        NewAuditHandler(svc.Audit),
		Survey:       NewSurveyHandler(svc.Survey),
		Moderation:   NewModerationHandler(svc.Moderation),
		Dashboard:    NewDashboardHandler(svc.Dashboard),
		Assistant:    NewAssistantHandler(svc.Assistant),
		Upload:       NewUploadHandler(svc.Upload),
		SSE:          NewSSEHandler(hub),
	}
}

// Response is the common response envelope.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse wraps a paginated list.
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination carries paging metadata.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// Success writes a 200 response.
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created writes a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error writes an error response. The HTTP status is the leading three digits
// of the business code.
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest writes a 400 response.
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized writes a 401 response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// Forbidden writes a 403 response.
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound writes a 404 response.
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict writes a 409 response.
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError writes a 500 response.
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// GetUserID reads the authenticated user id from the context.
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetSiteID reads the tenant site id from the context.
func GetSiteID(c *gin.Context) string {
	siteID, _ := c.Get("site_id")
	if id, ok := siteID.(string); ok {
		return id
	}
	return ""
}

// GetActor builds the workflow actor from the authenticated context.
func GetActor(c *gin.Context) workflow.Actor {
	actor := workflow.Actor{UserID: GetUserID(c)}
	if roles, ok := c.Get("roles"); ok {
		if rs, ok := roles.([]string); ok {
			actor.Roles = rs
		}
	}
	return actor
}

// GetPagination reads page/page_size query params with sane bounds.
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

func totalPages(total int64, pageSize int) int64 {
	if pageSize <= 0 {
		return 0
	}
	return (total + int64(pageSize) - 1) / int64(pageSize)
}
