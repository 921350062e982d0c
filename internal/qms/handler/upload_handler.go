package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/stratamine/qms/internal/qms/service"
)

// Evidence uploads are capped at 20MB.
const maxUploadSize = 20 << 20

// UploadHandler exposes NC evidence uploads and downloads.
type UploadHandler struct {
	svc *service.UploadService
}

// NewUploadHandler creates the upload handler.
func NewUploadHandler(svc *service.UploadService) *UploadHandler {
	return &UploadHandler{svc: svc}
}

// UploadEvidence handles POST /api/v1/ncs/:id/evidence
func (h *UploadHandler) UploadEvidence(c *gin.Context) {
	if !h.svc.Enabled() {
		Error(c, 50301, "Object storage is not configured")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "A file is required")
		return
	}
	if fileHeader.Size > maxUploadSize {
		BadRequest(c, "File exceeds the 20MB limit")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "Failed to read upload: "+err.Error())
		return
	}
	defer file.Close()

	attachment, err := h.svc.UploadEvidence(c.Request.Context(),
		GetSiteID(c), c.Param("id"), GetUserID(c),
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"),
		fileHeader.Size, file)
	if err != nil {
		InternalError(c, "Upload failed: "+err.Error())
		return
	}
	Created(c, attachment)
}

// Download handles GET /api/v1/attachments/:id/url
func (h *UploadHandler) Download(c *gin.Context) {
	url, err := h.svc.PresignedURL(c.Request.Context(), GetSiteID(c), c.Param("id"))
	if err != nil {
		NotFound(c, "Attachment not found")
		return
	}
	Success(c, gin.H{"url": url})
}
