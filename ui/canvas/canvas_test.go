package canvas

import (
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"

	"image-annotator/internal/annotate"
	"image-annotator/internal/label"
	"image-annotator/internal/render"
	"image-annotator/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopHost struct{ deleted []string }

func (h *nopHost) AddLabel(label.Label)             {}
func (h *nopHost) UpdateLabel(string, label.Update) {}
func (h *nopHost) DeleteLabel(id string)            { h.deleted = append(h.deleted, id) }
func (h *nopHost) AddCategory(string)               {}

func newTestCanvas(t *testing.T) (*AnnotationCanvas, *annotate.Controller, *nopHost) {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)

	host := &nopHost{}
	opts := annotate.DefaultOptions()
	opts.Viewport.FitMargin = 1
	ctrl := annotate.NewController(host, opts)
	c := NewAnnotationCanvas(ctrl, render.New(render.DefaultOptions()))
	c.Resize(fyne.NewSize(400, 300))
	require.NoError(t, ctrl.ImageLoaded(400, 300))
	return c, ctrl, host
}

func mouse(x, y float32, b desktop.MouseButton) *desktop.MouseEvent {
	ev := &desktop.MouseEvent{Button: b}
	ev.Position = fyne.NewPos(x, y)
	return ev
}

func TestCanvasDrawsRect(t *testing.T) {
	c, ctrl, _ := newTestCanvas(t)
	require.NoError(t, ctrl.SetTool(annotate.ToolRect))

	var got []annotate.Pending
	ctrl.OnShapeReady(func(p annotate.Pending) { got = append(got, p) })

	c.MouseDown(mouse(10, 10, desktop.MouseButtonPrimary))
	c.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(60, 50)}})
	c.MouseUp(mouse(60, 50, desktop.MouseButtonPrimary))
	c.DragEnd()

	require.Len(t, got, 1)
	assert.Equal(t, label.KindRect, got[0].Shape.Kind())
	assert.InDelta(t, 50, got[0].Shape.Bounds().Width, 1e-6)
	assert.Equal(t, desktop.CrosshairCursor, c.Cursor())
}

func TestCanvasKeys(t *testing.T) {
	c, ctrl, host := newTestCanvas(t)
	ctrl.SetLabels([]label.Label{{ID: "a", Category: "car", Shape: label.NewRect(geometry.Pt(10, 10), geometry.Pt(100, 100))}})
	ctrl.Select("a")

	assert.True(t, c.KeyDown(&fyne.KeyEvent{Name: fyne.KeyDelete}))
	assert.Equal(t, []string{"a"}, host.deleted)
	assert.False(t, c.KeyDown(&fyne.KeyEvent{Name: fyne.KeyA}))

	assert.True(t, c.KeyDown(&fyne.KeyEvent{Name: fyne.KeySpace}))
	c.MouseDown(mouse(100, 100, desktop.MouseButtonPrimary))
	c.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(120, 100)}})
	c.MouseUp(mouse(120, 100, desktop.MouseButtonPrimary))
	assert.InDelta(t, 20, ctrl.View().Position.X, 1e-6)
	assert.True(t, c.KeyUp(&fyne.KeyEvent{Name: fyne.KeySpace}))
	assert.Equal(t, desktop.DefaultCursor, c.Cursor())
}

func TestCanvasWheelZooms(t *testing.T) {
	c, ctrl, _ := newTestCanvas(t)
	before := ctrl.Scale()
	c.Scrolled(&fyne.ScrollEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(200, 150)}, Scrolled: fyne.NewDelta(0, 10)})
	assert.InDelta(t, before*1.2, ctrl.Scale(), 1e-9)
}

func TestCanvasRasterSize(t *testing.T) {
	c, _, _ := newTestCanvas(t)
	img := c.draw(800, 600)
	assert.Equal(t, 800, img.Bounds().Dx())
}
