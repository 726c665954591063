// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/moodboard/backend/internal/session"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version  string
	sessions *session.Manager
	tagging  TaggingStatus
}

// NewHealthHandler creates a new health handler. tagging may be nil when
// tagging is disabled.
func NewHealthHandler(version string, sessions *session.Manager, tagging TaggingStatus) HealthHandler {
	return &HealthHandlerImpl{
		version:  version,
		sessions: sessions,
		tagging:  tagging,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	tagging := "disabled"
	if h.tagging != nil {
		tagging = h.tagging.State()
	}
	sessions := 0
	if h.sessions != nil {
		sessions = h.sessions.Count()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"version":  h.version,
		"sessions": sessions,
		"tagging":  tagging,
	})
}
