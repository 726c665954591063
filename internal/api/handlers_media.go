// handlers_media.go - Media blob handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/moodboard/backend/internal/storage"
)

// MediaHandlerImpl implements the MediaHandler interface
type MediaHandlerImpl struct {
	media storage.MediaStore
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(media storage.MediaStore) MediaHandler {
	return &MediaHandlerImpl{media: media}
}

// HandleGetMedia serves a blob with its MIME type. Range requests are honoured
// so videos can seek.
func (h *MediaHandlerImpl) HandleGetMedia(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	rc, info, err := h.media.Open(id)
	if err != nil {
		return fromServiceError("media", id, err)
	}
	defer rc.Close()

	// Blobs are immutable once stored
	c.Response().Header().Set(echo.HeaderContentType, info.MimeType)
	c.Response().Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	http.ServeContent(c.Response(), c.Request(), info.Name, info.UploadedAt, rc)
	return nil
}
