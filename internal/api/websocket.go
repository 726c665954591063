package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/moodboard/backend/internal/canvas"
	"github.com/moodboard/backend/internal/logging"
	"github.com/moodboard/backend/internal/models"
	"github.com/moodboard/backend/internal/session"
	"github.com/moodboard/backend/internal/upload"
)

// WebSocket message types for the canvas session protocol
const (
	// Client -> Server messages
	MsgTypeContainer   = "container"
	MsgTypePointerDown = "pointer:down"
	MsgTypePointerMove = "pointer:move"
	MsgTypePointerUp   = "pointer:up"
	MsgTypeWheel       = "wheel"
	MsgTypeViewReset   = "view:reset"
	MsgTypeItemFront   = "item:front"
	MsgTypeItemDelete  = "item:delete"
	MsgTypeItemColors  = "item:colors"
	MsgTypeItemExpand  = "item:expand"
	MsgTypePaste       = "paste"
	MsgTypeDrop        = "drop"
	MsgTypeBrowse      = "browse"
	MsgTypePing        = "ping"

	// Server -> Client messages
	MsgTypeBoard     = "board"
	MsgTypeTransform = "transform"
	MsgTypeFrame     = "frame"
	MsgTypeCommit    = "commit"
	MsgTypeZOrder    = "zorder"
	MsgTypeUpload    = "upload"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// hookTimeout bounds store work triggered from a canvas hook
const hookTimeout = 30 * time.Second

// writeWait bounds one websocket write
const writeWait = 10 * time.Second

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// PointerPayload is a pointer event in screen pixels
type PointerPayload struct {
	X      float64       `json:"x"`
	Y      float64       `json:"y"`
	ItemID string        `json:"itemId,omitempty"`
	Handle canvas.Handle `json:"handle,omitempty"`
}

// WheelPayload is one forwarded wheel event
type WheelPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaY float64 `json:"deltaY"`
	Pinch  bool    `json:"pinch"`
}

// ItemPayload names the item an action applies to
type ItemPayload struct {
	ID string `json:"id"`
}

// FilePayload is one clipboard, dropped or picked file
type FilePayload struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"` // Base64 encoded file
}

// FilesPayload carries paste/drop/browse input. X/Y are screen coordinates;
// paste without them places at the viewport centre.
type FilesPayload struct {
	X     *float64      `json:"x,omitempty"`
	Y     *float64      `json:"y,omitempty"`
	Files []FilePayload `json:"files"`
}

// BoardPayload is the initial snapshot sent on connect
type BoardPayload struct {
	SessionID string           `json:"sessionId"`
	Week      *models.Week     `json:"week"`
	Items     []*models.Item   `json:"items"`
	Ranks     map[string]int   `json:"ranks"`
	Transform canvas.Transform `json:"transform"`
}

// ZOrderPayload reports a raised item
type ZOrderPayload struct {
	ID   string `json:"id"`
	Rank int    `json:"rank"`
}

// UploadPayload acknowledges a routed upload
type UploadPayload struct {
	JobID string       `json:"jobId"`
	Name  string       `json:"name"`
	At    canvas.Point `json:"at"`
}

// ExpandPayload carries what the lightbox needs to open an item
type ExpandPayload struct {
	Item     *models.Item `json:"item"`
	MediaURL string       `json:"mediaUrl"`
}

// WebSocket error response
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// CanvasSocketHandler manages canvas session connections
type CanvasSocketHandler struct {
	actions   *itemActions
	upgrader  websocket.Upgrader
	readLimit int64
	log       zerolog.Logger
}

// NewCanvasHandler creates a new canvas websocket handler. readLimit <= 0
// leaves gorilla's default (no limit).
func NewCanvasHandler(actions *itemActions, readLimit int64) CanvasHandler {
	return &CanvasSocketHandler{
		actions: actions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  64 * 1024, // 64KB read buffer
			WriteBufferSize: 64 * 1024, // 64KB write buffer
		},
		readLimit: readLimit,
		log:       logging.Component("ws"),
	}
}

// canvasConn serialises writes; gorilla allows one concurrent writer.
type canvasConn struct {
	ws  *websocket.Conn
	mu  sync.Mutex
	log zerolog.Logger
}

func (cc *canvasConn) send(msgType, id string, payload interface{}) {
	msg := WSMessage{Type: msgType, ID: id, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		msg.Payload = mustJSON(payload)
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := cc.ws.WriteJSON(msg); err != nil {
		cc.log.Debug().Err(err).Str("type", msgType).Msg("failed to send message")
	}
}

func (cc *canvasConn) sendError(id, message, code string) {
	cc.send(MsgTypeError, id, WSErrorResponse{Message: message, Code: code})
}

// canvasSession is one connection's board and its wiring to the stores.
type canvasSession struct {
	actions  *itemActions
	conn     *canvasConn
	board    *canvas.Board
	sess     *session.Session
	weekID   string
	language string
	log      zerolog.Logger
}

// HandleCanvasSocket upgrades the connection and runs a canvas session for
// the ?week= board (default: the current week).
func (h *CanvasSocketHandler) HandleCanvasSocket(c echo.Context) error {
	weekID := c.QueryParam("week")
	if weekID == "" {
		weekID = models.WeekID(time.Now())
	} else if _, _, err := models.ParseWeekID(weekID); err != nil {
		return NewBadRequestError("invalid week id", err)
	}

	ctx := c.Request().Context()
	week, err := h.actions.board.EnsureWeek(ctx, weekID)
	if err != nil {
		return NewInternalError("failed to open week", err)
	}
	items, err := h.actions.board.ListItems(ctx, weekID)
	if err != nil {
		return NewInternalError("failed to load items", err)
	}

	board := canvas.NewBoard(canvas.Hooks{})
	canvasItems := make([]canvas.Item, 0, len(items))
	for _, it := range items {
		canvasItems = append(canvasItems, toCanvasItem(it))
	}
	board.SetItems(canvasItems)

	sess, err := h.actions.sessions.Create(weekID, board)
	if errors.Is(err, session.ErrTooManySessions) {
		return NewServiceUnavailableError("too many open canvases")
	}
	if err != nil {
		return NewInternalError("failed to create session", err)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.actions.sessions.Remove(sess.ID)
		return err
	}
	defer ws.Close()
	if h.readLimit > 0 {
		ws.SetReadLimit(h.readLimit)
	}

	log := h.log.With().Str("session", sess.ID).Str("week", weekID).Logger()
	cs := &canvasSession{
		actions:  h.actions,
		conn:     &canvasConn{ws: ws, log: log},
		board:    board,
		sess:     sess,
		weekID:   weekID,
		language: c.QueryParam("lang"),
		log:      log,
	}
	board.SetHooks(cs.hooks())
	sess.SetNotifier(cs.onEvent)
	sess.SetCloser(func() { ws.Close() })
	defer h.actions.sessions.Remove(sess.ID)

	log.Info().Int("items", len(items)).Msg("canvas session opened")

	if items == nil {
		items = []*models.Item{}
	}
	week.Items = nil
	cs.conn.send(MsgTypeBoard, "", BoardPayload{
		SessionID: sess.ID,
		Week:      week,
		Items:     items,
		Ranks:     board.Ranks(),
		Transform: board.Transform(),
	})

	// Main message loop
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("connection error")
			}
			break
		}
		h.actions.sessions.Touch(sess.ID)
		cs.dispatch(msg)
	}

	log.Info().Msg("canvas session closed")
	return nil
}

func (cs *canvasSession) dispatch(msg WSMessage) {
	switch msg.Type {
	case MsgTypePing:
		cs.conn.send(MsgTypePong, msg.ID, nil)
	case MsgTypeContainer:
		var p canvas.Container
		if !cs.decode(msg, &p) {
			return
		}
		cs.board.SetContainer(p)
		cs.conn.send(MsgTypeTransform, msg.ID, cs.board.Transform())
	case MsgTypePointerDown:
		var p PointerPayload
		if !cs.decode(msg, &p) {
			return
		}
		if p.Handle != "" && !p.Handle.Valid() {
			cs.conn.sendError(msg.ID, "Unknown resize handle: "+string(p.Handle), "INVALID_PAYLOAD")
			return
		}
		cs.board.PointerDown(canvas.Point{X: p.X, Y: p.Y}, canvas.Target{ItemID: p.ItemID, Handle: p.Handle})
	case MsgTypePointerMove:
		var p PointerPayload
		if !cs.decode(msg, &p) {
			return
		}
		frame, panned := cs.board.PointerMove(canvas.Point{X: p.X, Y: p.Y})
		switch {
		case frame != nil:
			cs.conn.send(MsgTypeFrame, msg.ID, frame)
		case panned:
			cs.conn.send(MsgTypeTransform, msg.ID, cs.board.Transform())
		}
	case MsgTypePointerUp:
		commit, panned := cs.board.PointerUp()
		switch {
		case commit != nil:
			cs.conn.send(MsgTypeCommit, msg.ID, commit)
		case panned:
			cs.conn.send(MsgTypeTransform, msg.ID, cs.board.Transform())
		}
	case MsgTypeWheel:
		var p WheelPayload
		if !cs.decode(msg, &p) {
			return
		}
		t := cs.board.Wheel(canvas.Point{X: p.X, Y: p.Y}, p.DeltaY, p.Pinch)
		cs.conn.send(MsgTypeTransform, msg.ID, t)
	case MsgTypeViewReset:
		cs.conn.send(MsgTypeTransform, msg.ID, cs.board.ResetView())
	case MsgTypeItemFront, MsgTypeItemDelete, MsgTypeItemColors, MsgTypeItemExpand:
		var p ItemPayload
		if !cs.decode(msg, &p) {
			return
		}
		if p.ID == "" {
			cs.conn.sendError(msg.ID, "Missing item id", "INVALID_PAYLOAD")
			return
		}
		switch msg.Type {
		case MsgTypeItemFront:
			cs.board.BringToFront(p.ID)
		case MsgTypeItemDelete:
			cs.board.Delete(p.ID)
		case MsgTypeItemColors:
			cs.board.ExtractColors(p.ID)
		case MsgTypeItemExpand:
			cs.board.Expand(p.ID)
		}
	case MsgTypePaste, MsgTypeDrop, MsgTypeBrowse:
		cs.handleFiles(msg)
	default:
		cs.conn.sendError(msg.ID, "Unknown message type: "+msg.Type, "INVALID_TYPE")
	}
}

func (cs *canvasSession) decode(msg WSMessage, v interface{}) bool {
	if len(msg.Payload) == 0 {
		cs.conn.sendError(msg.ID, "Missing payload for "+msg.Type, "INVALID_PAYLOAD")
		return false
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		cs.conn.sendError(msg.ID, "Invalid "+msg.Type+" payload: "+err.Error(), "INVALID_PAYLOAD")
		return false
	}
	return true
}

// handleFiles decodes the files and routes them through the board, which
// picks the file and the placement.
func (cs *canvasSession) handleFiles(msg WSMessage) {
	var p FilesPayload
	if !cs.decode(msg, &p) {
		return
	}

	files := make([]canvas.File, 0, len(p.Files))
	for _, f := range p.Files {
		data, err := base64.StdEncoding.DecodeString(f.Data)
		if err != nil {
			cs.conn.sendError(msg.ID, "Invalid base64 data: "+err.Error(), "INVALID_DATA")
			return
		}
		files = append(files, canvas.File{Name: f.Name, Type: f.Type, Data: data})
	}

	var at *canvas.Point
	if p.X != nil && p.Y != nil {
		at = &canvas.Point{X: *p.X, Y: *p.Y}
	}

	var placed *canvas.Placement
	switch msg.Type {
	case MsgTypePaste:
		placed = cs.board.Paste(files, at)
	case MsgTypeDrop:
		if at == nil {
			cs.conn.sendError(msg.ID, "Drop requires x and y", "INVALID_PAYLOAD")
			return
		}
		placed = cs.board.Drop(files, *at)
	case MsgTypeBrowse:
		placed = cs.board.Browse(files)
	}
	if placed == nil {
		cs.conn.sendError(msg.ID, "No image or video to add", "NO_MEDIA")
	}
}

// hooks wires the board's notifications to the stores. Store work runs off
// the read loop so gestures stay responsive.
func (cs *canvasSession) hooks() canvas.Hooks {
	return canvas.Hooks{
		UploadFile:       cs.uploadFile,
		OnPositionChange: cs.persistGeometry,
		OnBringToFront: func(id string, rank int) {
			cs.conn.send(MsgTypeZOrder, "", ZOrderPayload{ID: id, Rank: rank})
		},
		OnDelete: func(id string) {
			go cs.withTimeout(func(ctx context.Context) {
				if _, err := cs.actions.deleteItem(ctx, id); err != nil {
					cs.reportItemError(id, "DELETE_FAILED", err)
				}
			})
		},
		OnExtractColors: func(id string) {
			go cs.withTimeout(func(ctx context.Context) {
				if _, err := cs.actions.extractColors(ctx, id); err != nil {
					cs.reportItemError(id, "COLORS_FAILED", err)
				}
			})
		},
		OnExpand: func(id string) {
			go cs.withTimeout(func(ctx context.Context) {
				item, err := cs.actions.board.GetItem(ctx, id)
				if err != nil {
					cs.reportItemError(id, "EXPAND_FAILED", err)
					return
				}
				cs.conn.send(EventItemExpand, id, ExpandPayload{Item: item, MediaURL: "/api/media/" + item.MediaID})
			})
		},
	}
}

func (cs *canvasSession) withTimeout(fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()
	fn(ctx)
}

func (cs *canvasSession) reportItemError(id, code string, err error) {
	cs.log.Warn().Err(err).Str("item", id).Str("code", code).Msg("item action failed")
	apiErr := fromServiceError("item", id, err)
	cs.conn.sendError(id, apiErr.Message, code)
}

func (cs *canvasSession) uploadFile(f canvas.File, at canvas.Point) {
	job := cs.actions.startUpload(upload.Request{
		WeekID:   cs.weekID,
		Name:     f.Name,
		Data:     f.Data,
		X:        int(math.Round(at.X)),
		Y:        int(math.Round(at.Y)),
		Language: cs.language,
	}, func(job *upload.Job) {
		if job.Status == upload.StatusError {
			cs.conn.sendError(job.ID, fmt.Sprintf("Upload of %s failed: %s", job.FileName, job.Error), "UPLOAD_FAILED")
		}
	})
	cs.conn.send(MsgTypeUpload, job.ID, UploadPayload{JobID: job.ID, Name: f.Name, At: at})
}

// persistGeometry stores a commit without blocking the gesture; failures are
// reported but the board keeps the committed geometry.
func (cs *canvasSession) persistGeometry(id string, g canvas.Geometry) {
	go cs.withTimeout(func(ctx context.Context) {
		if _, err := cs.actions.updateGeometry(ctx, id, toModelGeometry(g), cs.sess.ID); err != nil {
			cs.reportItemError(id, "SAVE_FAILED", err)
		}
	})
}

// onEvent receives week-wide events and keeps this session's board in step
// before forwarding them to the client.
func (cs *canvasSession) onEvent(event string, payload interface{}) {
	switch event {
	case EventItemCreated, EventItemUpdated:
		if item, ok := payload.(*models.Item); ok {
			cs.board.AddItem(toCanvasItem(item))
		}
	case EventItemDeleted:
		if ref, ok := payload.(ItemRef); ok {
			cs.board.RemoveItem(ref.ID)
		}
	}
	cs.conn.send(event, "", payload)
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
