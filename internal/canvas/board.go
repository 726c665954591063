package canvas

import (
	"strings"
	"sync"
)

// New items are centred on the placement point rather than anchored at it.
const (
	PlacementOffsetX = DefaultCardWidth / 2
	PlacementOffsetY = DefaultCardHeight / 2
)

// File is a raw blob handed to the board by paste, drop or the file picker.
type File struct {
	Name string
	Type string
	Data []byte
}

// IsMedia reports whether the blob is an image or a video.
func (f File) IsMedia() bool {
	return strings.HasPrefix(f.Type, "image/") || strings.HasPrefix(f.Type, "video/")
}

// Hooks are the board's external collaborators. Every hook is a notification:
// the board never waits on a result. UploadFile must return promptly and
// deliver the created item later through AddItem.
type Hooks struct {
	UploadFile       func(f File, at Point)
	OnPositionChange func(id string, g Geometry)
	OnBringToFront   func(id string, rank int)
	OnDelete         func(id string)
	OnExtractColors  func(id string)
	OnExpand         func(id string)
}

// Target is what a pointer-down landed on. An empty ItemID means the canvas
// background; a non-empty Handle means a resize handle of the item.
type Target struct {
	ItemID string `json:"itemId,omitempty"`
	Handle Handle `json:"handle,omitempty"`
}

// Frame is the live state of the active card after one gesture tick.
type Frame struct {
	ID     string  `json:"id"`
	Rect   Rect    `json:"rect"`
	Guides []Guide `json:"guides"`
}

// Commit is a finished gesture's rounded geometry.
type Commit struct {
	ID       string   `json:"id"`
	Geometry Geometry `json:"geometry"`
}

// Placement is where an upload was routed to in canvas space.
type Placement struct {
	File File
	At   Point
}

// Board holds the cards of one canvas, its viewport and its z-order. At most
// one card is dragging or resizing at a time.
type Board struct {
	mu       sync.Mutex
	viewport *Viewport
	cards    []*Card
	zorder   *ZOrder
	hooks    Hooks

	activeID   string
	grabScreen Point
}

// NewBoard creates an empty board.
func NewBoard(hooks Hooks) *Board {
	return &Board{
		viewport: NewViewport(),
		zorder:   NewZOrder(),
		hooks:    hooks,
	}
}

// SetHooks replaces the collaborators.
func (b *Board) SetHooks(hooks Hooks) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = hooks
}

// SetItems replaces the item list. Z-order ranks are kept for ids that
// survive; an active gesture on a vanished item is dropped.
func (b *Board) SetItems(items []Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var active *Card
	if i := b.indexOf(b.activeID); i >= 0 {
		active = b.cards[i]
	}
	b.cards = make([]*Card, 0, len(items))
	for _, it := range items {
		if active != nil && it.ID == active.ID() {
			b.cards = append(b.cards, active)
			continue
		}
		b.cards = append(b.cards, NewCard(it))
	}
	if b.activeID != "" && b.indexOf(b.activeID) < 0 {
		b.activeID = ""
	}
}

// AddItem appends an item, or updates it if the id is already present.
func (b *Board) AddItem(item Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexOf(item.ID); i >= 0 {
		if b.cards[i].State() == CardIdle {
			b.cards[i].SetRect(item.ResolveRect())
		}
		return
	}
	b.cards = append(b.cards, NewCard(item))
}

// RemoveItem drops an item after the external owner deleted it.
func (b *Board) RemoveItem(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(id)
	if i < 0 {
		return false
	}
	b.cards = append(b.cards[:i], b.cards[i+1:]...)
	b.zorder.Forget(id)
	if b.activeID == id {
		b.activeID = ""
	}
	return true
}

// Rects returns the current rect of every card keyed by id.
func (b *Board) Rects() map[string]Rect {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]Rect, len(b.cards))
	for _, c := range b.cards {
		out[c.ID()] = c.Rect()
	}
	return out
}

// Len returns the number of cards.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.cards)
}

// ActiveID returns the id of the card being dragged or resized, if any.
func (b *Board) ActiveID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeID
}

func (b *Board) indexOf(id string) int {
	for i, c := range b.cards {
		if c.ID() == id {
			return i
		}
	}
	return -1
}

// others returns every rect except the card at index skip.
func (b *Board) others(skip int) []Rect {
	rects := make([]Rect, len(b.cards))
	for i, c := range b.cards {
		rects[i] = c.Rect()
	}
	return OthersExcept(rects, skip)
}

// Transform returns the viewport transform.
func (b *Board) Transform() Transform {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewport.Transform()
}

// SetContainer records the measured canvas element box.
func (b *Board) SetContainer(c Container) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.viewport.SetContainer(c)
}

// Wheel applies an anchored zoom step.
func (b *Board) Wheel(cursor Point, deltaY float64, pinch bool) Transform {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewport.Zoom(cursor, deltaY, pinch)
}

// ResetView restores the identity transform.
func (b *Board) ResetView() Transform {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.viewport.ResetView()
	return b.viewport.Transform()
}

// ScreenToCanvas converts a screen point with the current transform.
func (b *Board) ScreenToCanvas(p Point) Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewport.ScreenToCanvas(p)
}

// Rank returns the stacking rank of id.
func (b *Board) Rank(id string) int {
	return b.zorder.Rank(id)
}

// Ranks returns every explicitly assigned rank.
func (b *Board) Ranks() map[string]int {
	return b.zorder.Ranks()
}

// BringToFront raises id above every other item. Ids not on the board are
// ignored and get no rank.
func (b *Board) BringToFront(id string) (int, bool) {
	b.mu.Lock()
	if b.indexOf(id) < 0 {
		b.mu.Unlock()
		return 0, false
	}
	hook := b.hooks.OnBringToFront
	b.mu.Unlock()
	rank := b.zorder.BringToFront(id)
	if hook != nil {
		hook(id, rank)
	}
	return rank, true
}

// PointerDown starts a gesture. On the background it starts panning; on an
// item it raises the item and starts a drag, or a resize when a handle was hit.
// It returns false when the pointer-down was ignored.
func (b *Board) PointerDown(p Point, target Target) bool {
	b.mu.Lock()
	if b.activeID != "" || b.viewport.Panning() {
		b.mu.Unlock()
		return false
	}
	if target.ItemID == "" {
		b.viewport.BeginPan(p)
		b.mu.Unlock()
		return true
	}
	i := b.indexOf(target.ItemID)
	if i < 0 {
		b.mu.Unlock()
		return false
	}
	card := b.cards[i]
	if target.Handle != "" {
		card.BeginResize(target.Handle)
	} else {
		card.BeginDrag()
	}
	b.activeID = card.ID()
	b.grabScreen = p
	b.mu.Unlock()

	b.BringToFront(target.ItemID)
	return true
}

// PointerMove advances the active gesture. It returns the frame of the active
// card, or panned=true when the viewport moved instead.
func (b *Board) PointerMove(p Point) (frame *Frame, panned bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.viewport.MovePan(p) {
		return nil, true
	}
	if b.activeID == "" {
		return nil, false
	}
	i := b.indexOf(b.activeID)
	if i < 0 {
		b.activeID = ""
		return nil, false
	}
	card := b.cards[i]
	scale := b.viewport.Transform().Scale
	dx := (p.X - b.grabScreen.X) / scale
	dy := (p.Y - b.grabScreen.Y) / scale
	others := b.others(i)

	var rect Rect
	var guides []Guide
	switch card.State() {
	case CardDragging:
		base := card.Baseline()
		rect, guides = card.DragTo(base.X+dx, base.Y+dy, others)
	case CardResizing:
		rect, guides = card.ResizeBy(dx, dy, others)
	default:
		return nil, false
	}
	if guides == nil {
		guides = []Guide{}
	}
	return &Frame{ID: card.ID(), Rect: rect, Guides: guides}, false
}

// PointerUp ends the active gesture. A finished drag or resize is committed
// through OnPositionChange and returned; a finished pan returns panned=true.
func (b *Board) PointerUp() (commit *Commit, panned bool) {
	b.mu.Lock()
	if b.viewport.EndPan() {
		b.mu.Unlock()
		return nil, true
	}
	if b.activeID == "" {
		b.mu.Unlock()
		return nil, false
	}
	i := b.indexOf(b.activeID)
	b.activeID = ""
	if i < 0 {
		b.mu.Unlock()
		return nil, false
	}
	card := b.cards[i]
	var g Geometry
	var ok bool
	switch card.State() {
	case CardDragging:
		g, ok = card.EndDrag()
	case CardResizing:
		g, ok = card.EndResize()
	}
	hook := b.hooks.OnPositionChange
	b.mu.Unlock()

	if !ok {
		return nil, false
	}
	if hook != nil {
		hook(card.ID(), g)
	}
	return &Commit{ID: card.ID(), Geometry: g}, false
}

// PlacementFor converts a screen point to the canvas position of a new card
// centred on it.
func (b *Board) PlacementFor(p Point) Point {
	c := b.ScreenToCanvas(p)
	return Point{X: c.X - PlacementOffsetX, Y: c.Y - PlacementOffsetY}
}

func (b *Board) viewportCenter() Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	center, _ := b.viewport.Center()
	return center
}

// upload routes one file to the UploadFile hook at the placement for p.
func (b *Board) upload(f File, p Point) *Placement {
	at := b.PlacementFor(p)
	b.mu.Lock()
	hook := b.hooks.UploadFile
	b.mu.Unlock()
	if hook != nil {
		hook(f, at)
	}
	return &Placement{File: f, At: at}
}

// Paste uploads the first image or video among the clipboard files, centred
// on at or on the viewport centre when at is nil. Other files are ignored.
func (b *Board) Paste(files []File, at *Point) *Placement {
	for _, f := range files {
		if !f.IsMedia() {
			continue
		}
		p := b.viewportCenter()
		if at != nil {
			p = *at
		}
		return b.upload(f, p)
	}
	return nil
}

// Drop uploads the first dropped file centred on the drop point. The rest of
// a multi-file drop is ignored.
func (b *Board) Drop(files []File, at Point) *Placement {
	if len(files) == 0 {
		return nil
	}
	return b.upload(files[0], at)
}

// Browse uploads the first file picked in the file dialog at the viewport
// centre.
func (b *Board) Browse(files []File) *Placement {
	if len(files) == 0 {
		return nil
	}
	return b.upload(files[0], b.viewportCenter())
}

// Delete, ExtractColors and Expand forward id-keyed actions to the owner.
func (b *Board) Delete(id string) {
	b.notify(func(h Hooks) func(string) { return h.OnDelete }, id)
}

func (b *Board) ExtractColors(id string) {
	b.notify(func(h Hooks) func(string) { return h.OnExtractColors }, id)
}

func (b *Board) Expand(id string) {
	b.notify(func(h Hooks) func(string) { return h.OnExpand }, id)
}

func (b *Board) notify(pick func(Hooks) func(string), id string) {
	b.mu.Lock()
	hook := pick(b.hooks)
	b.mu.Unlock()
	if hook != nil {
		hook(id)
	}
}
