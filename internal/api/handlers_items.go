// handlers_items.go - Board item handlers
package api

import (
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/moodboard/backend/internal/models"
	"github.com/moodboard/backend/internal/upload"
)

// ItemHandlerImpl implements the ItemHandler interface
type ItemHandlerImpl struct {
	actions   *itemActions
	maxUpload int64
}

// NewItemHandler creates a new item handler. maxUpload <= 0 disables the size check.
func NewItemHandler(actions *itemActions, maxUpload int64) ItemHandler {
	return &ItemHandlerImpl{
		actions:   actions,
		maxUpload: maxUpload,
	}
}

// formCoord reads an optional canvas coordinate; browsers may send fractions.
func formCoord(c echo.Context, name string) (int, error) {
	raw := c.FormValue(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, NewValidationError(name)
	}
	return int(math.Round(v)), nil
}

// HandleCreateItem accepts a media file and places it on the week's board.
// Processing is async; the response carries the upload job id.
func (h *ItemHandlerImpl) HandleCreateItem(c echo.Context) error {
	weekID, err := weekParam(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("file")
	if err != nil {
		return NewValidationError("file")
	}
	if h.maxUpload > 0 && file.Size > h.maxUpload {
		return NewPayloadTooLargeError(h.maxUpload)
	}

	x, err := formCoord(c, "x")
	if err != nil {
		return err
	}
	y, err := formCoord(c, "y")
	if err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return NewBadRequestError("failed to open uploaded file", err)
	}
	defer src.Close()

	var r io.Reader = src
	if h.maxUpload > 0 {
		r = io.LimitReader(src, h.maxUpload+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return NewBadRequestError("failed to read uploaded file", err)
	}
	if h.maxUpload > 0 && int64(len(data)) > h.maxUpload {
		return NewPayloadTooLargeError(h.maxUpload)
	}
	if len(data) == 0 {
		return NewValidationError("file")
	}

	job := h.actions.startUpload(upload.Request{
		WeekID:   weekID,
		Name:     file.Filename,
		Data:     data,
		X:        x,
		Y:        y,
		Language: c.FormValue("language"),
	}, nil)

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

type updatePositionRequest struct {
	X      *int `json:"x"`
	Y      *int `json:"y"`
	Width  *int `json:"width"`
	Height *int `json:"height"`
}

func (r *updatePositionRequest) validate() error {
	if r.X == nil {
		return NewValidationError("x")
	}
	if r.Y == nil {
		return NewValidationError("y")
	}
	if r.Width != nil && *r.Width <= 0 {
		return NewValidationError("width")
	}
	if r.Height != nil && *r.Height <= 0 {
		return NewValidationError("height")
	}
	return nil
}

// HandleUpdatePosition stores a committed position and optional size
func (h *ItemHandlerImpl) HandleUpdatePosition(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req updatePositionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	item, err := h.actions.updateGeometry(c.Request().Context(), id, models.Geometry{
		X:      *req.X,
		Y:      *req.Y,
		Width:  req.Width,
		Height: req.Height,
	}, "")
	if err != nil {
		return fromServiceError("item", id, err)
	}
	return c.JSON(http.StatusOK, item)
}

// HandleDeleteItem removes an item and its media
func (h *ItemHandlerImpl) HandleDeleteItem(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	if _, err := h.actions.deleteItem(c.Request().Context(), id); err != nil {
		return fromServiceError("item", id, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleTagItem re-runs AI tagging for an item
func (h *ItemHandlerImpl) HandleTagItem(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	tags, err := h.actions.retag(c.Request().Context(), id)
	if err != nil {
		return fromServiceError("item", id, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":   id,
		"tags": tags,
	})
}

// HandleExtractColors computes and stores an image item's palette
func (h *ItemHandlerImpl) HandleExtractColors(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	colors, err := h.actions.extractColors(c.Request().Context(), id)
	if err != nil {
		return fromServiceError("item", id, err)
	}
	return c.JSON(http.StatusOK, ItemColors{ID: id, Colors: colors})
}
