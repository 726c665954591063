// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/moodboard/backend/internal/session"
	"github.com/moodboard/backend/internal/storage"
	"github.com/moodboard/backend/internal/upload"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Board       storage.BoardStore
	Media       storage.MediaStore
	SessionMgr  *session.Manager
	UploadMgr   *upload.Manager
	Tagging     TaggingStatus
	Version     string
	MaxUpload   int64
	PaletteSize int
	// WSReadLimit caps one inbound websocket frame; 0 derives it from MaxUpload
	WSReadLimit int64
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Weeks     WeekHandler
	Items     ItemHandler
	Media     MediaHandler
	UploadJob UploadJobHandler
	Canvas    CanvasHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	if deps.SessionMgr == nil {
		deps.SessionMgr = session.NewManager()
	}
	actions := newItemActions(deps)
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.SessionMgr, deps.Tagging),
		Weeks:     NewWeekHandler(deps.Board, deps.SessionMgr),
		Items:     NewItemHandler(actions, deps.MaxUpload),
		Media:     NewMediaHandler(deps.Media),
		UploadJob: NewUploadJobHandler(deps.UploadMgr),
		Canvas:    NewCanvasHandler(actions, wsReadLimit(deps)),
	}
}

// RegisterRoutes registers all API routes on the /api group
func RegisterRoutes(g *echo.Group, handlers *Handlers) {
	g.GET("/health", handlers.Health.HandleHealth)

	weeks := g.Group("/weeks")
	weeks.GET("", handlers.Weeks.HandleListWeeks)
	weeks.GET("/current", handlers.Weeks.HandleCurrentWeek)
	weeks.GET("/:week", handlers.Weeks.HandleGetWeek)
	weeks.PUT("/:week/notes", handlers.Weeks.HandleSaveNotes)
	weeks.GET("/:week/items/msgpack", handlers.Weeks.HandleWeekItemsMsgpack)
	weeks.POST("/:week/items", handlers.Items.HandleCreateItem)

	items := g.Group("/items")
	items.PATCH("/:id/position", handlers.Items.HandleUpdatePosition)
	items.DELETE("/:id", handlers.Items.HandleDeleteItem)
	items.POST("/:id/tags", handlers.Items.HandleTagItem)
	items.POST("/:id/colors", handlers.Items.HandleExtractColors)

	g.GET("/uploads/:jobId", handlers.UploadJob.HandleGetUploadJob)
	g.GET("/media/:id", handlers.Media.HandleGetMedia)

	RegisterWebSocketRoutes(g, handlers)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(g *echo.Group, handlers *Handlers) {
	g.GET("/ws/canvas", handlers.Canvas.HandleCanvasSocket)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}

// wsReadLimit leaves room for base64 expansion of one full upload plus framing.
func wsReadLimit(deps *Dependencies) int64 {
	if deps.WSReadLimit > 0 {
		return deps.WSReadLimit
	}
	if deps.MaxUpload <= 0 {
		return 0
	}
	return deps.MaxUpload*4/3 + 64*1024
}
