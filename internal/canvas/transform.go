// Package canvas implements the moodboard canvas interaction engine: the
// pan/zoom transform, alignment snapping, per-card drag/resize gestures and the
// board that wires them together. It knows nothing about tags, AI or storage;
// it consumes positioned rectangles and emits geometry commits.
package canvas

// Zoom limits and wheel sensitivity.
const (
	MinScale        = 0.25
	MaxScale        = 2.0
	ZoomSensitivity = 0.002
)

// Point is a 2D coordinate, in screen or canvas space depending on context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Container is the on-screen box of the canvas element in screen pixels.
type Container struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Transform is the affine map from canvas space to container-local screen space:
// screen = canvas*Scale + (X, Y).
type Transform struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

// IdentityTransform returns {0, 0, 1}.
func IdentityTransform() Transform {
	return Transform{Scale: 1}
}

// ScreenToCanvas maps a screen point to canvas space given the container origin.
func (t Transform) ScreenToCanvas(p Point, origin Point) Point {
	return Point{
		X: (p.X - origin.X - t.X) / t.Scale,
		Y: (p.Y - origin.Y - t.Y) / t.Scale,
	}
}

// CanvasToScreen is the inverse of ScreenToCanvas.
func (t Transform) CanvasToScreen(p Point, origin Point) Point {
	return Point{
		X: p.X*t.Scale + t.X + origin.X,
		Y: p.Y*t.Scale + t.Y + origin.Y,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Viewport owns the transform of one canvas and the panning gesture state.
type Viewport struct {
	transform Transform
	container *Container

	panning bool
	lastPan Point
}

// NewViewport returns a viewport at the identity transform with no container.
func NewViewport() *Viewport {
	return &Viewport{transform: IdentityTransform()}
}

// Transform returns the current transform.
func (v *Viewport) Transform() Transform {
	return v.transform
}

// SetContainer records the measured container box.
func (v *Viewport) SetContainer(c Container) {
	v.container = &c
}

// ClearContainer marks the container as unmounted.
func (v *Viewport) ClearContainer() {
	v.container = nil
}

// Container returns the measured container, if any.
func (v *Viewport) Container() (Container, bool) {
	if v.container == nil {
		return Container{}, false
	}
	return *v.container, true
}

func (v *Viewport) origin() Point {
	if v.container == nil {
		return Point{}
	}
	return Point{X: v.container.Left, Y: v.container.Top}
}

// Pan shifts the translation by a screen-pixel delta, independent of scale.
func (v *Viewport) Pan(dx, dy float64) {
	v.transform.X += dx
	v.transform.Y += dy
}

// Zoom applies one wheel step anchored at the cursor: the canvas point under
// the cursor maps to the same screen pixel before and after.
func (v *Viewport) Zoom(cursor Point, deltaY float64, pinch bool) Transform {
	sensitivity := ZoomSensitivity
	if pinch {
		sensitivity *= 2
	}
	factor := 1 + (-deltaY * sensitivity)

	old := v.transform
	newScale := clamp(old.Scale*factor, MinScale, MaxScale)
	ratio := newScale / old.Scale

	origin := v.origin()
	cx := cursor.X - origin.X
	cy := cursor.Y - origin.Y

	v.transform = Transform{
		X:     cx - (cx-old.X)*ratio,
		Y:     cy - (cy-old.Y)*ratio,
		Scale: newScale,
	}
	return v.transform
}

// ScreenToCanvas converts using the current transform. With no measured
// container it returns the canvas origin.
func (v *Viewport) ScreenToCanvas(p Point) Point {
	if v.container == nil {
		return Point{}
	}
	return v.transform.ScreenToCanvas(p, v.origin())
}

// CanvasToScreen converts a canvas point to screen pixels.
func (v *Viewport) CanvasToScreen(p Point) Point {
	return v.transform.CanvasToScreen(p, v.origin())
}

// Center returns the screen-space centre of the container.
func (v *Viewport) Center() (Point, bool) {
	if v.container == nil {
		return Point{}, false
	}
	return Point{
		X: v.container.Left + v.container.Width/2,
		Y: v.container.Top + v.container.Height/2,
	}, true
}

// ResetView restores {0, 0, 1}.
func (v *Viewport) ResetView() {
	v.transform = IdentityTransform()
}

// BeginPan starts a panning gesture at a screen point.
func (v *Viewport) BeginPan(p Point) {
	v.panning = true
	v.lastPan = p
}

// MovePan pans by the movement since the previous pointer position. It is a
// no-op unless a panning gesture is active.
func (v *Viewport) MovePan(p Point) bool {
	if !v.panning {
		return false
	}
	v.Pan(p.X-v.lastPan.X, p.Y-v.lastPan.Y)
	v.lastPan = p
	return true
}

// EndPan finishes the panning gesture.
func (v *Viewport) EndPan() bool {
	was := v.panning
	v.panning = false
	return was
}

// Panning reports whether a panning gesture is active.
func (v *Viewport) Panning() bool {
	return v.panning
}
