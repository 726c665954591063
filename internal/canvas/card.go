package canvas

import (
	"math"
	"strings"
)

// Default card size used when an item has no stored width or height, and
// the smallest size a resize may produce.
const (
	DefaultCardWidth  = 280.0
	DefaultCardHeight = 200.0
	MinCardWidth      = 80.0
	MinCardHeight     = 60.0
)

// Item is an externally owned board item as seen by the canvas. Width and
// Height are optional; ResolveRect fills in the defaults.
type Item struct {
	ID     string   `json:"id"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
}

// ResolveRect returns the item's fully specified bounding box.
func (it Item) ResolveRect() Rect {
	r := Rect{X: it.X, Y: it.Y, Width: DefaultCardWidth, Height: DefaultCardHeight}
	if it.Width != nil {
		r.Width = *it.Width
	}
	if it.Height != nil {
		r.Height = *it.Height
	}
	return r
}

// Geometry is a committed position and size in whole canvas units.
type Geometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RoundRect rounds a rect to the nearest integer canvas unit.
func RoundRect(r Rect) Geometry {
	return Geometry{
		X:      int(math.Round(r.X)),
		Y:      int(math.Round(r.Y)),
		Width:  int(math.Round(r.Width)),
		Height: int(math.Round(r.Height)),
	}
}

// CardState is the gesture state of one card.
type CardState int

const (
	CardIdle CardState = iota
	CardDragging
	CardResizing
)

func (s CardState) String() string {
	switch s {
	case CardDragging:
		return "dragging"
	case CardResizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Handle names the card edges a resize moves, e.g. "se", "e", "nw".
type Handle string

const HandleSouthEast Handle = "se"

func (h Handle) north() bool { return strings.Contains(string(h), "n") }
func (h Handle) south() bool { return strings.Contains(string(h), "s") }
func (h Handle) east() bool  { return strings.Contains(string(h), "e") }
func (h Handle) west() bool  { return strings.Contains(string(h), "w") }

// Valid reports whether the handle moves at least one edge.
func (h Handle) Valid() bool {
	if h == "" || len(h) > 2 {
		return false
	}
	for _, c := range h {
		if !strings.ContainsRune("nsew", c) {
			return false
		}
	}
	return !(h.north() && h.south()) && !(h.east() && h.west())
}

// Card owns the drag/resize gesture for a single rectangle.
type Card struct {
	id       string
	rect     Rect
	state    CardState
	baseline Rect
	handle   Handle
	guides   []Guide
}

// NewCard creates an idle card for an item.
func NewCard(item Item) *Card {
	return &Card{id: item.ID, rect: item.ResolveRect()}
}

func (c *Card) ID() string           { return c.id }
func (c *Card) Rect() Rect           { return c.rect }
func (c *Card) State() CardState     { return c.state }
func (c *Card) Guides() []Guide      { return c.guides }
func (c *Card) Baseline() Rect       { return c.baseline }
func (c *Card) SetRect(r Rect)       { c.rect = r }
func (c *Card) ActiveHandle() Handle { return c.handle }

// BeginDrag captures the current rect as the gesture baseline.
func (c *Card) BeginDrag() {
	c.state = CardDragging
	c.baseline = c.rect
	c.guides = nil
}

// DragTo moves the card to a raw pointer-derived position, snapping against
// others. It returns the resolved rect and the guides to render.
func (c *Card) DragTo(x, y float64, others []Rect) (Rect, []Guide) {
	if c.state != CardDragging {
		return c.rect, nil
	}
	candidate := Rect{X: x, Y: y, Width: c.rect.Width, Height: c.rect.Height}
	snap := ComputeSnap(candidate, others)
	if snap.X != nil {
		candidate.X = *snap.X
	}
	if snap.Y != nil {
		candidate.Y = *snap.Y
	}
	c.rect = candidate
	c.guides = snap.Guides
	return c.rect, c.guides
}

// EndDrag returns the rounded geometry to commit and clears guides.
func (c *Card) EndDrag() (Geometry, bool) {
	if c.state != CardDragging {
		return Geometry{}, false
	}
	c.state = CardIdle
	c.guides = nil
	c.rect = Rect{X: math.Round(c.rect.X), Y: math.Round(c.rect.Y), Width: c.rect.Width, Height: c.rect.Height}
	return RoundRect(c.rect), true
}

// BeginResize starts a resize from the given handle.
func (c *Card) BeginResize(h Handle) {
	if !h.Valid() {
		h = HandleSouthEast
	}
	c.state = CardResizing
	c.baseline = c.rect
	c.handle = h
	c.guides = nil
}

// ResizeTo applies a candidate rect produced by the handle and snaps the
// edges that handle moves. Only a moving edge picks the snap target; fixed
// edges and centers never shift the moving edge.
func (c *Card) ResizeTo(candidate Rect, others []Rect) (Rect, []Guide) {
	if c.state != CardResizing {
		return c.rect, nil
	}
	candidate = c.limit(candidate)

	snapped := candidate
	var snappedX, snappedY bool
	switch {
	case c.handle.east():
		if dx, ok := nearestFrom(candidate, others, true, []anchor{anchorEnd}); ok {
			snapped.Width += dx
			snappedX = true
		}
	case c.handle.west():
		if dx, ok := nearestFrom(candidate, others, true, []anchor{anchorStart}); ok {
			snapped.X += dx
			snapped.Width -= dx
			snappedX = true
		}
	}
	switch {
	case c.handle.south():
		if dy, ok := nearestFrom(candidate, others, false, []anchor{anchorEnd}); ok {
			snapped.Height += dy
			snappedY = true
		}
	case c.handle.north():
		if dy, ok := nearestFrom(candidate, others, false, []anchor{anchorStart}); ok {
			snapped.Y += dy
			snapped.Height -= dy
			snappedY = true
		}
	}
	if snapped.Width < MinCardWidth {
		snapped.X, snapped.Width = candidate.X, candidate.Width
		snappedX = false
	}
	if snapped.Height < MinCardHeight {
		snapped.Y, snapped.Height = candidate.Y, candidate.Height
		snappedY = false
	}

	c.rect = snapped
	c.guides = []Guide{}
	if snappedX {
		c.guides = append(c.guides, guidesFor(snapped, others, true)...)
	}
	if snappedY {
		c.guides = append(c.guides, guidesFor(snapped, others, false)...)
	}
	return c.rect, c.guides
}

// ResizeBy derives the candidate rect from a canvas-space pointer delta
// relative to the baseline and applies ResizeTo.
func (c *Card) ResizeBy(dx, dy float64, others []Rect) (Rect, []Guide) {
	b := c.baseline
	candidate := b
	if c.handle.east() {
		candidate.Width = b.Width + dx
	}
	if c.handle.west() {
		candidate.X = b.X + dx
		candidate.Width = b.Width - dx
	}
	if c.handle.south() {
		candidate.Height = b.Height + dy
	}
	if c.handle.north() {
		candidate.Y = b.Y + dy
		candidate.Height = b.Height - dy
	}
	return c.ResizeTo(candidate, others)
}

// limit keeps the rect at or above the minimum size, pinning the edge
// opposite the handle.
func (c *Card) limit(r Rect) Rect {
	if r.Width < MinCardWidth {
		if c.handle.west() {
			r.X = r.Right() - MinCardWidth
		}
		r.Width = MinCardWidth
	}
	if r.Height < MinCardHeight {
		if c.handle.north() {
			r.Y = r.Bottom() - MinCardHeight
		}
		r.Height = MinCardHeight
	}
	return r
}

// EndResize returns the rounded geometry to commit and clears guides.
func (c *Card) EndResize() (Geometry, bool) {
	if c.state != CardResizing {
		return Geometry{}, false
	}
	c.state = CardIdle
	c.guides = nil
	g := RoundRect(c.rect)
	c.rect = Rect{X: float64(g.X), Y: float64(g.Y), Width: float64(g.Width), Height: float64(g.Height)}
	return g, true
}
