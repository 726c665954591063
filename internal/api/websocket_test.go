package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodboard/backend/internal/canvas"
	"github.com/moodboard/backend/internal/models"
	"github.com/moodboard/backend/internal/testutil"
)

func startCanvasServer(t *testing.T, env *testEnv) *httptest.Server {
	t.Helper()
	e := echo.New()
	SetupMiddleware(e)
	RegisterRoutes(e.Group("/api"), env.handlers)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func dialCanvas(t *testing.T, srv *httptest.Server, week string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/canvas?week=" + week
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendWS(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	msg := WSMessage{Type: msgType, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		msg.Payload = mustJSON(payload)
	}
	require.NoError(t, conn.WriteJSON(msg))
}

// readUntil skips messages until one of msgType arrives
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", msgType)
		if msg.Type == msgType {
			return msg
		}
	}
}

// readAll collects one message of each type in any order
func readAll(t *testing.T, conn *websocket.Conn, types ...string) map[string]WSMessage {
	t.Helper()
	want := make(map[string]bool, len(types))
	for _, typ := range types {
		want[typ] = true
	}
	got := make(map[string]WSMessage, len(types))
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for len(got) < len(want) {
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %v", types)
		if want[msg.Type] {
			got[msg.Type] = msg
		}
	}
	return got
}

func openBoard(t *testing.T, conn *websocket.Conn) BoardPayload {
	t.Helper()
	var board BoardPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MsgTypeBoard).Payload, &board))
	sendWS(t, conn, MsgTypeContainer, canvas.Container{Width: 1000, Height: 800})
	readUntil(t, conn, MsgTypeTransform)
	return board
}

func TestCanvasSocket_DragCommitIsPersisted(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, models.KindImage)
	srv := startCanvasServer(t, env)
	conn := dialCanvas(t, srv, testWeek)

	board := openBoard(t, conn)
	require.Len(t, board.Items, 1)
	assert.Equal(t, testWeek, board.Week.ID)
	assert.Equal(t, 1, env.sessions.Count())

	sendWS(t, conn, MsgTypePointerDown, PointerPayload{X: 100, Y: 100, ItemID: item.ID})
	var z ZOrderPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MsgTypeZOrder).Payload, &z))
	assert.Equal(t, item.ID, z.ID)
	assert.Greater(t, z.Rank, canvas.DefaultRank)

	sendWS(t, conn, MsgTypePointerMove, PointerPayload{X: 150, Y: 130})
	var frame canvas.Frame
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MsgTypeFrame).Payload, &frame))
	assert.Equal(t, canvas.Rect{X: 60, Y: 50, Width: 280, Height: 200}, frame.Rect)

	sendWS(t, conn, MsgTypePointerUp, PointerPayload{X: 150, Y: 130})
	var commit canvas.Commit
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MsgTypeCommit).Payload, &commit))
	assert.Equal(t, canvas.Geometry{X: 60, Y: 50, Width: 280, Height: 200}, commit.Geometry)

	require.Eventually(t, func() bool { return len(env.board.GeometryCalls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	call := env.board.GeometryCalls()[0]
	assert.Equal(t, item.ID, call.ID)
	assert.Equal(t, 60, call.Geometry.X)
	assert.Equal(t, 50, call.Geometry.Y)
	require.NotNil(t, call.Geometry.Width)
	assert.Equal(t, 280, *call.Geometry.Width)
}

func TestCanvasSocket_PanAndZoom(t *testing.T) {
	env := newTestEnv(t)
	srv := startCanvasServer(t, env)
	conn := dialCanvas(t, srv, testWeek)
	openBoard(t, conn)

	sendWS(t, conn, MsgTypePointerDown, PointerPayload{X: 10, Y: 10})
	sendWS(t, conn, MsgTypePointerMove, PointerPayload{X: 40, Y: 0})
	var tr canvas.Transform
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MsgTypeTransform).Payload, &tr))
	assert.Equal(t, canvas.Transform{X: 30, Y: -10, Scale: 1}, tr)
	sendWS(t, conn, MsgTypePointerUp, PointerPayload{X: 40, Y: 0})
	readUntil(t, conn, MsgTypeTransform)

	sendWS(t, conn, MsgTypeWheel, WheelPayload{DeltaY: -5000})
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MsgTypeTransform).Payload, &tr))
	assert.Equal(t, canvas.MaxScale, tr.Scale)

	sendWS(t, conn, MsgTypeViewReset, nil)
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MsgTypeTransform).Payload, &tr))
	assert.Equal(t, canvas.IdentityTransform(), tr)
}

func TestCanvasSocket_PasteBroadcastsCreatedItem(t *testing.T) {
	env := newTestEnv(t)
	srv := startCanvasServer(t, env)
	conn := dialCanvas(t, srv, testWeek)
	openBoard(t, conn)
	other := dialCanvas(t, srv, testWeek)
	readUntil(t, other, MsgTypeBoard)

	png := testutil.PNG(color.NRGBA{G: 255, A: 255})
	sendWS(t, conn, MsgTypePaste, FilesPayload{Files: []FilePayload{
		{Name: "notes.txt", Type: "text/plain", Data: base64.StdEncoding.EncodeToString([]byte("hi"))},
		{Name: "leaf.png", Type: "image/png", Data: base64.StdEncoding.EncodeToString(png)},
	}})

	// the job may finish before the upload ack is written
	msgs := readAll(t, conn, MsgTypeUpload, EventItemCreated)
	var up UploadPayload
	require.NoError(t, json.Unmarshal(msgs[MsgTypeUpload].Payload, &up))
	assert.Equal(t, "leaf.png", up.Name)
	assert.Equal(t, canvas.Point{X: 360, Y: 300}, up.At)

	for _, raw := range []json.RawMessage{msgs[EventItemCreated].Payload, readUntil(t, other, EventItemCreated).Payload} {
		var created models.Item
		require.NoError(t, json.Unmarshal(raw, &created))
		assert.Equal(t, "leaf.png", created.Name)
		assert.Equal(t, 360, created.X)
		assert.Equal(t, 300, created.Y)
	}

	// the new card is draggable on the originating board
	items, err := env.board.ListItems(context.Background(), testWeek)
	require.NoError(t, err)
	require.Len(t, items, 1)
	sendWS(t, conn, MsgTypePointerDown, PointerPayload{X: 400, Y: 350, ItemID: items[0].ID})
	readUntil(t, conn, MsgTypeZOrder)
}

func TestCanvasSocket_PasteWithoutMedia(t *testing.T) {
	env := newTestEnv(t)
	srv := startCanvasServer(t, env)
	conn := dialCanvas(t, srv, testWeek)
	openBoard(t, conn)

	sendWS(t, conn, MsgTypePaste, FilesPayload{Files: []FilePayload{
		{Name: "notes.txt", Type: "text/plain", Data: base64.StdEncoding.EncodeToString([]byte("hi"))},
	}})
	var e WSErrorResponse
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MsgTypeError).Payload, &e))
	assert.Equal(t, "NO_MEDIA", e.Code)
}

func TestCanvasSocket_DeleteItem(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, models.KindImage)
	srv := startCanvasServer(t, env)
	conn := dialCanvas(t, srv, testWeek)
	openBoard(t, conn)

	sendWS(t, conn, MsgTypeItemDelete, ItemPayload{ID: item.ID})
	var ref ItemRef
	require.NoError(t, json.Unmarshal(readUntil(t, conn, EventItemDeleted).Payload, &ref))
	assert.Equal(t, item.ID, ref.ID)
	assert.Equal(t, 0, env.media.Count())

	// gestures on the removed card are ignored
	sendWS(t, conn, MsgTypePointerDown, PointerPayload{X: 20, Y: 30, ItemID: item.ID})
	sendWS(t, conn, MsgTypePing, nil)
	readUntil(t, conn, MsgTypePong)
}

func TestCanvasSocket_ProtocolErrors(t *testing.T) {
	env := newTestEnv(t)
	srv := startCanvasServer(t, env)
	conn := dialCanvas(t, srv, testWeek)
	openBoard(t, conn)

	tests := []struct {
		name     string
		msgType  string
		payload  interface{}
		wantCode string
	}{
		{name: "unknown type", msgType: "teleport", wantCode: "INVALID_TYPE"},
		{name: "missing payload", msgType: MsgTypeWheel, wantCode: "INVALID_PAYLOAD"},
		{name: "bad handle", msgType: MsgTypePointerDown, payload: PointerPayload{ItemID: "x", Handle: "up"}, wantCode: "INVALID_PAYLOAD"},
		{name: "missing item id", msgType: MsgTypeItemColors, payload: ItemPayload{}, wantCode: "INVALID_PAYLOAD"},
		{name: "bad base64", msgType: MsgTypeDrop, payload: map[string]interface{}{"x": 1, "y": 1, "files": []FilePayload{{Name: "a", Type: "image/png", Data: "!!"}}}, wantCode: "INVALID_DATA"},
		{name: "unknown item colors", msgType: MsgTypeItemColors, payload: ItemPayload{ID: "ghost"}, wantCode: "COLORS_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sendWS(t, conn, tt.msgType, tt.payload)
			var e WSErrorResponse
			require.NoError(t, json.Unmarshal(readUntil(t, conn, MsgTypeError).Payload, &e))
			assert.Equal(t, tt.wantCode, e.Code)
		})
	}
}

func TestCanvasSocket_InvalidWeek(t *testing.T) {
	env := newTestEnv(t)
	srv := startCanvasServer(t, env)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/canvas?week=someday"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, env.sessions.Count())
}
