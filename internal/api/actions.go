// actions.go - Item operations shared by the REST handlers and canvas sessions
package api

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/moodboard/backend/internal/canvas"
	"github.com/moodboard/backend/internal/logging"
	"github.com/moodboard/backend/internal/models"
	"github.com/moodboard/backend/internal/palette"
	"github.com/moodboard/backend/internal/session"
	"github.com/moodboard/backend/internal/storage"
	"github.com/moodboard/backend/internal/upload"
)

// Session events fanned out to every canvas showing the affected week.
const (
	EventItemCreated = "item:created"
	EventItemUpdated = "item:updated"
	EventItemDeleted = "item:deleted"
	EventItemColors  = "item:colors"
	EventItemTags    = "item:tags"
	EventItemExpand  = "item:expand"
	EventWeekNotes   = "week:notes"
)

// ItemRef identifies an item in event payloads.
type ItemRef struct {
	ID     string `json:"id"`
	WeekID string `json:"weekId"`
}

// ItemColors is the payload of item:colors.
type ItemColors struct {
	ID     string   `json:"id"`
	Colors []string `json:"colors"`
}

// ItemTags is the payload of item:tags.
type ItemTags struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
}

type itemActions struct {
	board       storage.BoardStore
	media       storage.MediaStore
	uploads     *upload.Manager
	sessions    *session.Manager
	paletteSize int
	log         zerolog.Logger
}

func newItemActions(deps *Dependencies) *itemActions {
	size := deps.PaletteSize
	if size <= 0 {
		size = palette.DefaultSize
	}
	sessions := deps.SessionMgr
	if sessions == nil {
		sessions = session.NewManager()
	}
	return &itemActions{
		board:       deps.Board,
		media:       deps.Media,
		uploads:     deps.UploadMgr,
		sessions:    sessions,
		paletteSize: size,
		log:         logging.Component("items"),
	}
}

// startUpload queues an upload and announces the created item to every
// session on the week. onDone still runs for failed jobs.
func (a *itemActions) startUpload(req upload.Request, onDone func(*upload.Job)) *upload.Job {
	return a.uploads.Start(req, func(job *upload.Job) {
		if job.Status == upload.StatusComplete && job.Item != nil {
			a.sessions.Broadcast(job.WeekID, "", EventItemCreated, job.Item)
		}
		if onDone != nil {
			onDone(job)
		}
	})
}

// updateGeometry persists a commit. skipSession is the session that produced
// it, which already shows the new geometry.
func (a *itemActions) updateGeometry(ctx context.Context, id string, g models.Geometry, skipSession string) (*models.Item, error) {
	if err := a.board.UpdateGeometry(ctx, id, g); err != nil {
		return nil, err
	}
	item, err := a.board.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	a.sessions.Broadcast(item.WeekID, skipSession, EventItemUpdated, item)
	return item, nil
}

func (a *itemActions) deleteItem(ctx context.Context, id string) (*models.Item, error) {
	item, err := a.board.DeleteItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := a.media.Delete(item.MediaID); err != nil {
		a.log.Warn().Err(err).Str("item", id).Str("media", item.MediaID).Msg("media blob not removed")
	}
	a.sessions.Broadcast(item.WeekID, "", EventItemDeleted, ItemRef{ID: item.ID, WeekID: item.WeekID})
	return item, nil
}

func (a *itemActions) extractColors(ctx context.Context, id string) ([]string, error) {
	item, err := a.board.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Kind != models.KindImage {
		return nil, fmt.Errorf("item %s is a %s: %w", id, item.Kind, palette.ErrUnsupportedMedia)
	}

	rc, _, err := a.media.Open(item.MediaID)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	colors, err := palette.Extract(rc, a.paletteSize)
	if err != nil {
		return nil, err
	}
	if err := a.board.SetColors(ctx, id, colors); err != nil {
		return nil, err
	}
	a.sessions.Broadcast(item.WeekID, "", EventItemColors, ItemColors{ID: id, Colors: colors})
	return colors, nil
}

func (a *itemActions) retag(ctx context.Context, id string) ([]string, error) {
	tags, err := a.uploads.TagItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item, err := a.board.GetItem(ctx, id); err == nil {
		a.sessions.Broadcast(item.WeekID, "", EventItemTags, ItemTags{ID: id, Tags: tags})
	}
	return tags, nil
}

// toCanvasItem is the canvas engine's view of a stored item.
func toCanvasItem(it *models.Item) canvas.Item {
	ci := canvas.Item{ID: it.ID, X: float64(it.X), Y: float64(it.Y)}
	if it.Width != nil {
		w := float64(*it.Width)
		ci.Width = &w
	}
	if it.Height != nil {
		h := float64(*it.Height)
		ci.Height = &h
	}
	return ci
}

func toModelGeometry(g canvas.Geometry) models.Geometry {
	w, h := g.Width, g.Height
	return models.Geometry{X: g.X, Y: g.Y, Width: &w, Height: &h}
}
