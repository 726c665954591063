// handlers_weeks.go - Week board handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/moodboard/backend/internal/models"
	"github.com/moodboard/backend/internal/session"
	"github.com/moodboard/backend/internal/storage"
)

// maxNotesLength bounds the free-text notes of one week
const maxNotesLength = 20000

// WeekHandlerImpl implements the WeekHandler interface
type WeekHandlerImpl struct {
	board    storage.BoardStore
	sessions *session.Manager
	now      func() time.Time
}

// NewWeekHandler creates a new week handler
func NewWeekHandler(board storage.BoardStore, sessions *session.Manager) WeekHandler {
	return &WeekHandlerImpl{
		board:    board,
		sessions: sessions,
		now:      time.Now,
	}
}

// weekParam validates the :week path parameter
func weekParam(c echo.Context) (string, error) {
	id := c.Param("week")
	if _, _, err := models.ParseWeekID(id); err != nil {
		return "", NewBadRequestError("invalid week id", err)
	}
	return id, nil
}

// HandleListWeeks returns every week that has a board, newest first
func (h *WeekHandlerImpl) HandleListWeeks(c echo.Context) error {
	weeks, err := h.board.ListWeeks(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to list weeks", err)
	}
	if weeks == nil {
		weeks = []*models.Week{}
	}
	return c.JSON(http.StatusOK, weeks)
}

// HandleCurrentWeek returns this week's board, creating it on first access
func (h *WeekHandlerImpl) HandleCurrentWeek(c echo.Context) error {
	id := models.WeekID(h.now())
	return h.respondWeek(c, id)
}

// HandleGetWeek returns a week with its items. Unknown weeks are created empty.
func (h *WeekHandlerImpl) HandleGetWeek(c echo.Context) error {
	id, err := weekParam(c)
	if err != nil {
		return err
	}
	return h.respondWeek(c, id)
}

func (h *WeekHandlerImpl) respondWeek(c echo.Context, id string) error {
	ctx := c.Request().Context()
	if _, err := h.board.EnsureWeek(ctx, id); err != nil {
		return NewInternalError("failed to open week", err)
	}
	week, err := h.board.GetWeek(ctx, id)
	if err != nil {
		return fromServiceError("week", id, err)
	}
	if week.Items == nil {
		week.Items = []*models.Item{}
	}
	return c.JSON(http.StatusOK, week)
}

type saveNotesRequest struct {
	Notes string `json:"notes"`
}

func (r *saveNotesRequest) validate() error {
	if len(r.Notes) > maxNotesLength {
		return NewValidationError("notes")
	}
	return nil
}

// HandleSaveNotes replaces the week's notes
func (h *WeekHandlerImpl) HandleSaveNotes(c echo.Context) error {
	id, err := weekParam(c)
	if err != nil {
		return err
	}

	var req saveNotesRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	week, err := h.board.SaveNotes(c.Request().Context(), id, req.Notes)
	if err != nil {
		return NewInternalError("failed to save notes", err)
	}
	if h.sessions != nil {
		h.sessions.Broadcast(id, "", EventWeekNotes, map[string]string{"weekId": id, "notes": week.Notes})
	}
	return c.JSON(http.StatusOK, week)
}

// HandleWeekItemsMsgpack returns a week's items as msgpack
func (h *WeekHandlerImpl) HandleWeekItemsMsgpack(c echo.Context) error {
	id, err := weekParam(c)
	if err != nil {
		return err
	}

	items, err := h.board.ListItems(c.Request().Context(), id)
	if err != nil {
		return NewInternalError("failed to list items", err)
	}
	if items == nil {
		items = []*models.Item{}
	}

	data, err := msgpack.Marshal(map[string]interface{}{
		"week":  id,
		"items": items,
		"total": len(items),
	})
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}
