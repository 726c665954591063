package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	uploads  []Placement
	commits  []Commit
	raised   []string
	deleted  []string
	colors   []string
	expanded []string
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		UploadFile: func(f File, at Point) {
			r.uploads = append(r.uploads, Placement{File: f, At: at})
		},
		OnPositionChange: func(id string, g Geometry) {
			r.commits = append(r.commits, Commit{ID: id, Geometry: g})
		},
		OnBringToFront:  func(id string, rank int) { r.raised = append(r.raised, id) },
		OnDelete:        func(id string) { r.deleted = append(r.deleted, id) },
		OnExtractColors: func(id string) { r.colors = append(r.colors, id) },
		OnExpand:        func(id string) { r.expanded = append(r.expanded, id) },
	}
}

func newTestBoard(items ...Item) (*Board, *recorder) {
	rec := &recorder{}
	b := NewBoard(rec.hooks())
	b.SetContainer(Container{Left: 0, Top: 0, Width: 1000, Height: 800})
	b.SetItems(items)
	return b, rec
}

func TestBoard_DragGesture(t *testing.T) {
	b, rec := newTestBoard(
		Item{ID: "a", X: 0, Y: 0},
		Item{ID: "b", X: 400, Y: 0},
	)

	require.True(t, b.PointerDown(Point{X: 410, Y: 10}, Target{ItemID: "b"}))
	assert.Equal(t, "b", b.ActiveID())
	assert.Equal(t, []string{"b"}, rec.raised)
	assert.Greater(t, b.Rank("b"), b.Rank("a"))

	frame, panned := b.PointerMove(Point{X: 413, Y: 13})
	assert.False(t, panned)
	require.NotNil(t, frame)
	assert.Equal(t, "b", frame.ID)
	assert.Equal(t, Rect{X: 403, Y: 0, Width: 280, Height: 200}, frame.Rect)
	assert.NotEmpty(t, frame.Guides)

	commit, panned := b.PointerUp()
	assert.False(t, panned)
	require.NotNil(t, commit)
	assert.Equal(t, Commit{ID: "b", Geometry: Geometry{X: 403, Y: 0, Width: 280, Height: 200}}, *commit)
	assert.Equal(t, []Commit{*commit}, rec.commits)
	assert.Empty(t, b.ActiveID())
}

func TestBoard_DragScalesPointerDelta(t *testing.T) {
	b, rec := newTestBoard(Item{ID: "a", X: 0, Y: 0})
	b.Wheel(Point{}, -500, false) // scale 2

	b.PointerDown(Point{X: 100, Y: 100}, Target{ItemID: "a"})
	b.PointerMove(Point{X: 300, Y: 150})
	b.PointerUp()

	require.Len(t, rec.commits, 1)
	assert.Equal(t, Geometry{X: 100, Y: 25, Width: 280, Height: 200}, rec.commits[0].Geometry)
}

func TestBoard_IdenticalGeometryExcludedByIndex(t *testing.T) {
	b, _ := newTestBoard(
		Item{ID: "a", X: 0, Y: 0},
		Item{ID: "b", X: 0, Y: 0},
	)

	b.PointerDown(Point{X: 50, Y: 50}, Target{ItemID: "b"})
	frame, _ := b.PointerMove(Point{X: 53, Y: 54})
	require.NotNil(t, frame)
	assert.Equal(t, 0.0, frame.Rect.X, "snaps back onto its twin")
	assert.Equal(t, 0.0, frame.Rect.Y)
}

func TestBoard_SingleActiveGesture(t *testing.T) {
	b, _ := newTestBoard(Item{ID: "a"}, Item{ID: "b", X: 600})

	require.True(t, b.PointerDown(Point{X: 1, Y: 1}, Target{ItemID: "a"}))
	assert.False(t, b.PointerDown(Point{X: 601, Y: 1}, Target{ItemID: "b"}))
	assert.False(t, b.PointerDown(Point{X: 900, Y: 700}, Target{}))
	assert.Equal(t, "a", b.ActiveID())
}

func TestBoard_ResizeGesture(t *testing.T) {
	b, rec := newTestBoard(Item{ID: "a", X: 0, Y: 0})

	b.PointerDown(Point{X: 280, Y: 200}, Target{ItemID: "a", Handle: "se"})
	frame, _ := b.PointerMove(Point{X: 320.6, Y: 250.2})
	require.NotNil(t, frame)
	assert.InDelta(t, 320.6, frame.Rect.Width, 1e-9)

	commit, _ := b.PointerUp()
	require.NotNil(t, commit)
	assert.Equal(t, Geometry{X: 0, Y: 0, Width: 321, Height: 250}, commit.Geometry)
	assert.Len(t, rec.commits, 1)
}

func TestBoard_BackgroundPans(t *testing.T) {
	b, rec := newTestBoard(Item{ID: "a"})

	require.True(t, b.PointerDown(Point{X: 100, Y: 100}, Target{}))
	frame, panned := b.PointerMove(Point{X: 130, Y: 90})
	assert.Nil(t, frame)
	assert.True(t, panned)
	assert.Equal(t, Transform{X: 30, Y: -10, Scale: 1}, b.Transform())

	commit, panned := b.PointerUp()
	assert.Nil(t, commit)
	assert.True(t, panned)
	assert.Empty(t, rec.commits)
	assert.Empty(t, rec.raised)
}

func TestBoard_DropPlacement(t *testing.T) {
	b, rec := newTestBoard()
	files := []File{
		{Name: "one.png", Type: "image/png", Data: []byte{1}},
		{Name: "two.png", Type: "image/png", Data: []byte{2}},
	}

	placed := b.Drop(files, Point{X: 500, Y: 300})
	require.NotNil(t, placed)
	assert.Equal(t, Point{X: 360, Y: 200}, placed.At)
	require.Len(t, rec.uploads, 1, "only the first dropped file is uploaded")
	assert.Equal(t, "one.png", rec.uploads[0].File.Name)
}

func TestBoard_PasteFirstMediaAtViewportCenter(t *testing.T) {
	b, rec := newTestBoard()
	files := []File{
		{Name: "notes.txt", Type: "text/plain"},
		{Name: "clip.mp4", Type: "video/mp4"},
		{Name: "shot.png", Type: "image/png"},
	}

	placed := b.Paste(files, nil)
	require.NotNil(t, placed)
	assert.Equal(t, "clip.mp4", placed.File.Name)
	assert.Equal(t, Point{X: 500 - PlacementOffsetX, Y: 400 - PlacementOffsetY}, placed.At)
	assert.Len(t, rec.uploads, 1)

	assert.Nil(t, b.Paste([]File{{Name: "a.txt", Type: "text/plain"}}, nil))
	assert.Len(t, rec.uploads, 1)
}

func TestBoard_PlacementWithoutContainer(t *testing.T) {
	b := NewBoard(Hooks{})
	assert.Equal(t, Point{X: -PlacementOffsetX, Y: -PlacementOffsetY}, b.PlacementFor(Point{X: 500, Y: 300}))
}

func TestBoard_IDNotifications(t *testing.T) {
	b, rec := newTestBoard(Item{ID: "a"})
	b.Delete("a")
	b.ExtractColors("a")
	b.Expand("a")
	assert.Equal(t, []string{"a"}, rec.deleted)
	assert.Equal(t, []string{"a"}, rec.colors)
	assert.Equal(t, []string{"a"}, rec.expanded)
	assert.Equal(t, 1, b.Len(), "the board never removes items on its own")

	assert.True(t, b.RemoveItem("a"))
	assert.Equal(t, 0, b.Len())
	assert.False(t, b.RemoveItem("a"))
}

func TestBoard_BringToFrontIgnoresUnknownItems(t *testing.T) {
	b, rec := newTestBoard(Item{ID: "a"})

	_, ok := b.BringToFront("ghost")
	assert.False(t, ok)
	assert.Empty(t, rec.raised)
	assert.Empty(t, b.Ranks())

	rank, ok := b.BringToFront("a")
	require.True(t, ok)
	assert.Equal(t, DefaultRank+1, rank, "the counter was not bumped by the unknown id")
	assert.Equal(t, []string{"a"}, rec.raised)
}

func TestBoard_AddItemDuringDrag(t *testing.T) {
	b, _ := newTestBoard(Item{ID: "a"})
	b.PointerDown(Point{}, Target{ItemID: "a"})
	b.AddItem(Item{ID: "new", X: 900, Y: 900})
	b.SetItems([]Item{{ID: "a"}, {ID: "new", X: 900, Y: 900}})

	frame, _ := b.PointerMove(Point{X: 20, Y: 0})
	require.NotNil(t, frame, "drag survives an item list refresh")
	assert.Equal(t, 20.0, frame.Rect.X)
	assert.Equal(t, 2, b.Len())
}
