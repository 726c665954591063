// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// WeekHandler handles week boards and their notes
type WeekHandler interface {
	HandleListWeeks(c echo.Context) error
	HandleCurrentWeek(c echo.Context) error
	HandleGetWeek(c echo.Context) error
	HandleSaveNotes(c echo.Context) error
	HandleWeekItemsMsgpack(c echo.Context) error
}

// ItemHandler handles board item operations
type ItemHandler interface {
	HandleCreateItem(c echo.Context) error
	HandleUpdatePosition(c echo.Context) error
	HandleDeleteItem(c echo.Context) error
	HandleTagItem(c echo.Context) error
	HandleExtractColors(c echo.Context) error
}

// MediaHandler serves stored media blobs
type MediaHandler interface {
	HandleGetMedia(c echo.Context) error
}

// UploadJobHandler reports async upload progress
type UploadJobHandler interface {
	HandleGetUploadJob(c echo.Context) error
}

// CanvasHandler hosts live canvas sessions over websocket
type CanvasHandler interface {
	HandleCanvasSocket(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// TaggingStatus reports the tagging client's breaker state
type TaggingStatus interface {
	State() string
}
