// handlers_upload.go - Upload job status handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/moodboard/backend/internal/upload"
)

// UploadJobHandlerImpl implements the UploadJobHandler interface
type UploadJobHandlerImpl struct {
	uploads *upload.Manager
}

// NewUploadJobHandler creates a new upload job handler
func NewUploadJobHandler(uploads *upload.Manager) UploadJobHandler {
	return &UploadJobHandlerImpl{uploads: uploads}
}

// HandleGetUploadJob returns the current state of an upload job
func (h *UploadJobHandlerImpl) HandleGetUploadJob(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}
	job, ok := h.uploads.GetJob(id)
	if !ok {
		return NewNotFoundError("upload job", id)
	}
	return c.JSON(http.StatusOK, job)
}
