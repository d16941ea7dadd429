// Package canvas provides the annotation canvas widget: it forwards pointer,
// wheel and key input to an annotate.Controller and paints controller
// snapshots through the renderer.
package canvas

import (
	"image"
	"sync"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"image-annotator/internal/annotate"
	"image-annotator/internal/render"
	"image-annotator/pkg/geometry"
)

// AnnotationCanvas displays one image with its labels.
type AnnotationCanvas struct {
	widget.BaseWidget

	ctrl     *annotate.Controller
	renderer *render.Renderer
	raster   *fynecanvas.Raster

	mu           sync.Mutex
	img          image.Image
	down         bool
	last         fyne.Position
	onViewChange func()
}

var (
	_ desktop.Mouseable   = (*AnnotationCanvas)(nil)
	_ desktop.Hoverable   = (*AnnotationCanvas)(nil)
	_ desktop.Cursorable  = (*AnnotationCanvas)(nil)
	_ fyne.Draggable      = (*AnnotationCanvas)(nil)
	_ fyne.Scrollable     = (*AnnotationCanvas)(nil)
	_ fyne.DoubleTappable = (*AnnotationCanvas)(nil)
	_ fyne.Tappable       = (*AnnotationCanvas)(nil)
)

// NewAnnotationCanvas creates a canvas over ctrl. It takes the controller's
// change callback; use OnViewChange to observe changes.
func NewAnnotationCanvas(ctrl *annotate.Controller, r *render.Renderer) *AnnotationCanvas {
	c := &AnnotationCanvas{ctrl: ctrl, renderer: r}
	c.raster = fynecanvas.NewRaster(c.draw)
	c.raster.ScaleMode = fynecanvas.ImageScalePixels
	ctrl.OnChange(func() {
		c.raster.Refresh()
		c.mu.Lock()
		cb := c.onViewChange
		c.mu.Unlock()
		if cb != nil {
			cb()
		}
	})
	c.ExtendBaseWidget(c)
	return c
}

// Controller returns the controller behind the canvas.
func (c *AnnotationCanvas) Controller() *annotate.Controller {
	return c.ctrl
}

// OnViewChange sets a callback run after every controller change.
func (c *AnnotationCanvas) OnViewChange(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onViewChange = cb
}

// SetImage sets the pixels drawn under the labels. The controller is told
// about the size separately through ImageLoaded.
func (c *AnnotationCanvas) SetImage(img image.Image) {
	c.mu.Lock()
	c.img = img
	c.mu.Unlock()
	c.raster.Refresh()
}

// Image returns the displayed pixels.
func (c *AnnotationCanvas) Image() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.img
}

// Resize records the new drawing area with the controller.
func (c *AnnotationCanvas) Resize(size fyne.Size) {
	c.BaseWidget.Resize(size)
	c.ctrl.SetViewSize(float64(size.Width), float64(size.Height))
}

// MinSize keeps the canvas usable in a small window.
func (c *AnnotationCanvas) MinSize() fyne.Size {
	return fyne.NewSize(320, 240)
}

// CreateRenderer implements fyne.Widget.
func (c *AnnotationCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(c.raster)
}

func (c *AnnotationCanvas) draw(w, h int) image.Image {
	c.mu.Lock()
	img := c.img
	c.mu.Unlock()

	pixelScale := 1.0
	if size := c.Size(); size.Width > 0 {
		pixelScale = float64(w) / float64(size.Width)
	}
	return c.renderer.Image(w, h, img, c.ctrl.View(), pixelScale)
}

func point(p fyne.Position) geometry.Point2D {
	return geometry.Pt(float64(p.X), float64(p.Y))
}

func button(b desktop.MouseButton) annotate.Button {
	switch b {
	case desktop.MouseButtonSecondary:
		return annotate.ButtonSecondary
	case desktop.MouseButtonTertiary:
		return annotate.ButtonMiddle
	}
	return annotate.ButtonPrimary
}

// MouseDown starts a press.
func (c *AnnotationCanvas) MouseDown(ev *desktop.MouseEvent) {
	c.mu.Lock()
	c.down = true
	c.last = ev.Position
	c.mu.Unlock()
	c.ctrl.PointerDown(point(ev.Position), button(ev.Button))
}

// MouseUp ends a press.
func (c *AnnotationCanvas) MouseUp(ev *desktop.MouseEvent) {
	c.release(ev.Position)
}

func (c *AnnotationCanvas) release(pos fyne.Position) {
	c.mu.Lock()
	wasDown := c.down
	c.down = false
	c.mu.Unlock()
	if wasDown {
		c.ctrl.PointerUp(point(pos))
	}
}

// Dragged forwards pointer motion while a button is held.
func (c *AnnotationCanvas) Dragged(ev *fyne.DragEvent) {
	c.mu.Lock()
	c.last = ev.Position
	c.mu.Unlock()
	c.ctrl.PointerMove(point(ev.Position))
}

// DragEnd completes a drag whose release was not delivered as MouseUp.
func (c *AnnotationCanvas) DragEnd() {
	c.mu.Lock()
	pos := c.last
	c.mu.Unlock()
	c.release(pos)
}

// MouseIn implements desktop.Hoverable.
func (c *AnnotationCanvas) MouseIn(ev *desktop.MouseEvent) {
	c.ctrl.PointerMove(point(ev.Position))
}

// MouseMoved forwards hover motion.
func (c *AnnotationCanvas) MouseMoved(ev *desktop.MouseEvent) {
	c.ctrl.PointerMove(point(ev.Position))
}

// MouseOut clears the hover highlight.
func (c *AnnotationCanvas) MouseOut() {
	c.ctrl.SetHighlight("")
}

// Tapped is handled by MouseDown and MouseUp.
func (c *AnnotationCanvas) Tapped(*fyne.PointEvent) {}

// DoubleTapped completes a polygon or deletes the label under the pointer.
func (c *AnnotationCanvas) DoubleTapped(ev *fyne.PointEvent) {
	c.ctrl.DoubleClick(point(ev.Position))
}

// Scrolled zooms about the pointer.
func (c *AnnotationCanvas) Scrolled(ev *fyne.ScrollEvent) {
	c.ctrl.Wheel(point(ev.Position), float64(ev.Scrolled.DY))
}

// Cursor shows a crosshair while a drawing tool or region mode is active.
func (c *AnnotationCanvas) Cursor() desktop.Cursor {
	if c.ctrl.InRegionMode() || c.ctrl.Tool().Draws() {
		return desktop.CrosshairCursor
	}
	return desktop.DefaultCursor
}

// KeyDown handles canvas shortcuts. It reports whether the key was used.
func (c *AnnotationCanvas) KeyDown(ev *fyne.KeyEvent) bool {
	switch ev.Name {
	case fyne.KeySpace:
		c.ctrl.SetSpaceHeld(true)
	case fyne.KeyEscape:
		if c.ctrl.InRegionMode() {
			c.ctrl.ExitRegionMode()
		} else {
			c.ctrl.Cancel()
		}
	case fyne.KeyDelete, fyne.KeyBackspace:
		c.ctrl.DeleteSelected()
	case fyne.KeyReturn, fyne.KeyEnter:
		c.ctrl.CompletePolygon()
	default:
		return false
	}
	return true
}

// KeyUp releases a held space bar.
func (c *AnnotationCanvas) KeyUp(ev *fyne.KeyEvent) bool {
	if ev.Name == fyne.KeySpace {
		c.ctrl.SetSpaceHeld(false)
		return true
	}
	return false
}
