package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewport_ZoomKeepsCursorPointFixed(t *testing.T) {
	tests := []struct {
		name   string
		start  Transform
		cursor Point
		deltaY float64
		pinch  bool
	}{
		{name: "zoom in from identity", start: IdentityTransform(), cursor: Point{X: 300, Y: 200}, deltaY: -100},
		{name: "zoom out panned", start: Transform{X: -120, Y: 45, Scale: 1.5}, cursor: Point{X: 512, Y: 90}, deltaY: 80},
		{name: "pinch zoom", start: Transform{X: 10, Y: 10, Scale: 0.5}, cursor: Point{X: 40, Y: 700}, deltaY: -30, pinch: true},
		{name: "clamped at max", start: Transform{X: 5, Y: 5, Scale: 1.9}, cursor: Point{X: 250, Y: 250}, deltaY: -2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewViewport()
			v.SetContainer(Container{Left: 30, Top: 40, Width: 1200, Height: 800})
			v.transform = tt.start

			before := v.ScreenToCanvas(tt.cursor)
			v.Zoom(tt.cursor, tt.deltaY, tt.pinch)
			after := v.ScreenToCanvas(tt.cursor)

			assert.InDelta(t, before.X, after.X, 1e-9)
			assert.InDelta(t, before.Y, after.Y, 1e-9)
		})
	}
}

func TestViewport_ZoomFactor(t *testing.T) {
	v := NewViewport()
	v.SetContainer(Container{Width: 800, Height: 600})

	v.Zoom(Point{}, -100, false)
	assert.InDelta(t, 1.2, v.Transform().Scale, 1e-9)

	v.ResetView()
	v.Zoom(Point{}, -100, true)
	assert.InDelta(t, 1.4, v.Transform().Scale, 1e-9)
}

func TestViewport_ScaleClamp(t *testing.T) {
	v := NewViewport()
	v.SetContainer(Container{Width: 800, Height: 600})

	for i := 0; i < 50; i++ {
		v.Zoom(Point{X: 400, Y: 300}, -500, true)
		require.LessOrEqual(t, v.Transform().Scale, MaxScale)
	}
	assert.Equal(t, MaxScale, v.Transform().Scale)

	for i := 0; i < 50; i++ {
		v.Zoom(Point{X: 400, Y: 300}, 300, false)
		require.GreaterOrEqual(t, v.Transform().Scale, MinScale)
	}
	assert.Equal(t, MinScale, v.Transform().Scale)
}

func TestTransform_RoundTrip(t *testing.T) {
	transforms := []Transform{
		IdentityTransform(),
		{X: 120, Y: -80, Scale: 0.25},
		{X: -3.5, Y: 999, Scale: 2},
		{X: 0.1, Y: 0.2, Scale: 1.337},
	}
	points := []Point{{}, {X: 360, Y: 200}, {X: -1500.25, Y: 42.5}}
	origin := Point{X: 64, Y: 12}

	for _, tr := range transforms {
		for _, p := range points {
			got := tr.ScreenToCanvas(tr.CanvasToScreen(p, origin), origin)
			assert.InDelta(t, p.X, got.X, 1e-9)
			assert.InDelta(t, p.Y, got.Y, 1e-9)
		}
	}
}

func TestViewport_Pan(t *testing.T) {
	v := NewViewport()
	v.Zoom(Point{}, -250, false)
	scale := v.Transform().Scale

	v.BeginPan(Point{X: 10, Y: 10})
	assert.True(t, v.MovePan(Point{X: 40, Y: 0}))
	assert.True(t, v.MovePan(Point{X: 50, Y: 5}))
	assert.True(t, v.EndPan())
	assert.False(t, v.MovePan(Point{X: 500, Y: 500}))

	tr := v.Transform()
	assert.InDelta(t, 40, tr.X, 1e-9)
	assert.InDelta(t, -5, tr.Y, 1e-9)
	assert.Equal(t, scale, tr.Scale, "pan must not change scale")
}

func TestViewport_ResetView(t *testing.T) {
	v := NewViewport()
	v.Pan(33, 44)
	v.Zoom(Point{X: 10, Y: 10}, -300, false)
	v.ResetView()
	assert.Equal(t, IdentityTransform(), v.Transform())
}

func TestViewport_ScreenToCanvasWithoutContainer(t *testing.T) {
	v := NewViewport()
	v.Pan(100, 100)
	assert.Equal(t, Point{}, v.ScreenToCanvas(Point{X: 500, Y: 300}))

	v.SetContainer(Container{Left: 10, Top: 20, Width: 100, Height: 100})
	assert.Equal(t, Point{X: 390, Y: 180}, v.ScreenToCanvas(Point{X: 500, Y: 300}))

	v.ClearContainer()
	assert.Equal(t, Point{}, v.ScreenToCanvas(Point{X: 500, Y: 300}))
}
