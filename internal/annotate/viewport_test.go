package annotate

import (
	"testing"

	"image-annotator/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewportFitCentersImage(t *testing.T) {
	v := NewViewport(DefaultViewportOptions())
	v.SetViewSize(800, 600)
	require.NoError(t, v.Load(1600, 900))

	// min(800/1600, 600/900) * 0.9
	assert.InDelta(t, 0.45, v.Scale(), 1e-9)
	assert.InDelta(t, 40.0, v.Position().X, 1e-9)
	assert.InDelta(t, 97.5, v.Position().Y, 1e-9)
	assert.True(t, v.Ready())

	// Image center maps to view center
	c := v.ToScreen(geometry.Pt(800, 450))
	assert.InDelta(t, 400.0, c.X, 1e-9)
	assert.InDelta(t, 300.0, c.Y, 1e-9)
}

func TestViewportRoundTrip(t *testing.T) {
	v := NewViewport(DefaultViewportOptions())
	v.SetViewSize(640, 480)
	require.NoError(t, v.Load(320, 240))
	v.Pan(13, -7)
	v.ZoomIn()

	p := geometry.Pt(123.5, 77.25)
	back := v.ToImage(v.ToScreen(p))
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)
}

func TestViewportZoomClamps(t *testing.T) {
	v := NewViewport(DefaultViewportOptions())
	v.SetViewSize(500, 500)
	require.NoError(t, v.Load(500, 500))

	for i := 0; i < 100; i++ {
		v.ZoomIn()
		assert.LessOrEqual(t, v.Scale(), DefaultMaxScale)
	}
	assert.Equal(t, DefaultMaxScale, v.Scale())

	for i := 0; i < 100; i++ {
		v.ZoomOut()
		assert.GreaterOrEqual(t, v.Scale(), DefaultMinScale)
	}
	assert.Equal(t, DefaultMinScale, v.Scale())
}

func TestViewportZoomToCenterKeepsCenterFixed(t *testing.T) {
	v := NewViewport(DefaultViewportOptions())
	v.SetViewSize(800, 600)
	require.NoError(t, v.Load(1000, 1000))
	v.Pan(30, 40)

	center := geometry.Pt(400, 300)
	before := v.ToImage(center)
	v.ZoomIn()
	after := v.ToImage(center)

	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)
}

func TestViewportZoomAtKeepsPointerFixed(t *testing.T) {
	v := NewViewport(DefaultViewportOptions())
	v.SetViewSize(800, 600)
	require.NoError(t, v.Load(1000, 1000))

	pointer := geometry.Pt(120, 510)
	before := v.ToImage(pointer)
	v.ZoomAt(pointer, true)
	assert.InDelta(t, 0.54*1.2, v.Scale(), 1e-9)
	after := v.ToImage(pointer)
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)

	v.ZoomAt(pointer, false)
	assert.InDelta(t, 0.54, v.Scale(), 1e-9)
}

func TestViewportPanAddsScreenDelta(t *testing.T) {
	v := NewViewport(DefaultViewportOptions())
	v.SetViewSize(100, 100)
	require.NoError(t, v.Load(100, 100))
	v.ZoomIn()
	start := v.Position()

	v.Pan(15, -5)
	assert.InDelta(t, start.X+15, v.Position().X, 1e-9)
	assert.InDelta(t, start.Y-5, v.Position().Y, 1e-9)
}

func TestViewportLoadFailure(t *testing.T) {
	v := NewViewport(DefaultViewportOptions())
	v.SetViewSize(100, 100)
	assert.Error(t, v.Load(0, 10))
	assert.False(t, v.Ready())

	require.NoError(t, v.Load(10, 10))
	v.Fail()
	assert.False(t, v.Ready())
	assert.Equal(t, 1.0, v.Scale())
}

func TestViewportOptionsDefaults(t *testing.T) {
	o := ViewportOptions{}.withDefaults()
	assert.Equal(t, DefaultViewportOptions(), o)

	o = ViewportOptions{MinScale: 0.5, MaxScale: 2, ZoomStep: 2, FitMargin: 1}.withDefaults()
	assert.Equal(t, 0.5, o.MinScale)
	assert.Equal(t, 2.0, o.MaxScale)
	assert.Equal(t, 1.0, o.FitMargin)
}
