package handler

import (
	"github.com/fieldsafe/ptw/internal/ptw/service"
	"github.com/gin-gonic/gin"
)

// UploadHandler multipart file upload endpoint
type UploadHandler struct {
	svc *service.UploadService
}

// NewUploadHandler creates the upload handler
func NewUploadHandler(svc *service.UploadService) *UploadHandler {
	return &UploadHandler{svc: svc}
}

// Upload stores one multipart file and returns its opaque URL reference
// POST /api/v1/uploads
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file field: "+err.Error())
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "open upload: "+err.Error())
		return
	}
	defer f.Close()

	uploaded, err := h.svc.Upload(c.Request.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		f)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, uploaded)
}
