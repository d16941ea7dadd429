package annotate

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"image-annotator/internal/label"
	"image-annotator/pkg/geometry"
)

// DefaultDimOpacity is the opacity of labels that are not highlighted while
// another label is.
const DefaultDimOpacity = 0.15

var (
	// ErrImageNotReady is returned for drawing actions before an image loads.
	ErrImageNotReady = errors.New("image not ready")
	// ErrRegionModeActive is returned for tool changes during region selection.
	ErrRegionModeActive = errors.New("region selection in progress")
	// ErrNoPendingShape is returned when a category arrives with no shape.
	ErrNoPendingShape = errors.New("no shape awaiting a category")
	// ErrEmptyCategory is returned for blank category names.
	ErrEmptyCategory = errors.New("category is empty")
)

// Host owns the label collection of the displayed image. The controller only
// proposes changes; the host assigns ids and stores them.
type Host interface {
	AddLabel(l label.Label)
	UpdateLabel(id string, u label.Update)
	DeleteLabel(id string)
	AddCategory(name string)
}

// Options configures a Controller.
type Options struct {
	Viewport       ViewportOptions
	MinRectSize    float64
	MinRegionSize  float64
	PointHitRadius float64
	DimOpacity     float64
	Logger         *slog.Logger
}

// DefaultOptions returns the standard canvas behavior.
func DefaultOptions() Options {
	return Options{
		Viewport:       DefaultViewportOptions(),
		MinRectSize:    DefaultMinRectSize,
		MinRegionSize:  DefaultMinRegionSize,
		PointHitRadius: DefaultPointHitRadius,
		DimOpacity:     DefaultDimOpacity,
	}
}

// View is a snapshot of everything needed to draw the canvas.
type View struct {
	Ready     bool
	Tool      Tool
	Scale     float64
	Position  geometry.Point2D
	ImageSize geometry.Size

	// Labels in draw order; a label being dragged already carries its offset.
	Labels      []label.Label
	Selected    string
	Highlighted string
	DimOpacity  float64

	// Shape in progress.
	DraftTool   Tool
	Draft       []geometry.Point2D
	DraftCursor *geometry.Point2D

	RegionMode bool
	Region     *geometry.Rect

	// Pending holds a committed shape while its category is being chosen.
	Pending label.Shape
	Panning bool
}

// ToScreen converts an image point with the snapshot's transform.
func (v View) ToScreen(p geometry.Point2D) geometry.Point2D {
	return p.Scale(v.Scale).Add(v.Position)
}

// Controller owns the canvas interaction state. All methods are safe for
// concurrent use; host calls and observers run after the internal lock is
// released, so they may call back into the controller.
type Controller struct {
	mu   sync.Mutex
	host Host
	opts Options
	log  *slog.Logger

	vp      *Viewport
	builder *Builder
	region  *RegionSelector

	tool        Tool
	regionMode  bool
	labels      []label.Label
	selected    string
	highlighted string
	pending     *Pending
	spaceHeld   bool

	panning bool
	panLast geometry.Point2D

	drag struct {
		active      bool
		id          string
		start       geometry.Point2D
		delta       geometry.Point2D
		wasSelected bool
	}

	onShapeReady func(Pending)
	onRegion     func(geometry.Rect)
	onChange     func()
}

// NewController creates a controller reporting label changes to host.
func NewController(host Host, opts Options) *Controller {
	d := DefaultOptions()
	if opts.MinRectSize <= 0 {
		opts.MinRectSize = d.MinRectSize
	}
	if opts.MinRegionSize <= 0 {
		opts.MinRegionSize = d.MinRegionSize
	}
	if opts.PointHitRadius <= 0 {
		opts.PointHitRadius = d.PointHitRadius
	}
	if opts.DimOpacity <= 0 || opts.DimOpacity > 1 {
		opts.DimOpacity = d.DimOpacity
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		host:    host,
		opts:    opts,
		log:     logger.With("component", "canvas"),
		vp:      NewViewport(opts.Viewport),
		builder: NewBuilder(opts.MinRectSize),
		region:  NewRegionSelector(opts.MinRegionSize),
	}
}

// OnShapeReady sets the callback fired when a shape needs a category.
func (c *Controller) OnShapeReady(cb func(Pending)) {
	c.mu.Lock()
	c.onShapeReady = cb
	c.mu.Unlock()
}

// OnRegionSelected sets the callback fired with an accepted reference region.
func (c *Controller) OnRegionSelected(cb func(geometry.Rect)) {
	c.mu.Lock()
	c.onRegion = cb
	c.mu.Unlock()
}

// OnChange sets the callback fired after any state change that needs a
// redraw.
func (c *Controller) OnChange(cb func()) {
	c.mu.Lock()
	c.onChange = cb
	c.mu.Unlock()
}

// batch collects the calls to make once the lock is released.
type batch struct {
	calls   []func()
	changed bool
}

func (b *batch) add(fn func()) { b.calls = append(b.calls, fn) }

func (c *Controller) do(fn func(b *batch)) {
	var b batch
	c.mu.Lock()
	fn(&b)
	onChange := c.onChange
	c.mu.Unlock()

	for _, call := range b.calls {
		call()
	}
	if b.changed && onChange != nil {
		onChange()
	}
}

// Tool returns the active tool.
func (c *Controller) Tool() Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tool
}

// Ready reports whether an image is loaded.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vp.Ready()
}

// Scale returns the current zoom factor.
func (c *Controller) Scale() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vp.Scale()
}

// ToImage converts a screen point with the current transform.
func (c *Controller) ToImage(p geometry.Point2D) geometry.Point2D {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vp.ToImage(p)
}

// Selected returns the id of the selected label, or "".
func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Highlighted returns the id of the highlighted label, or "".
func (c *Controller) Highlighted() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.highlighted
}

// InRegionMode reports whether region selection is active.
func (c *Controller) InRegionMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regionMode
}

// HasPending reports whether a shape is waiting for its category.
func (c *Controller) HasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// View returns a render snapshot.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Ready:       c.vp.Ready(),
		Tool:        c.tool,
		Scale:       c.vp.Scale(),
		Position:    c.vp.Position(),
		ImageSize:   c.vp.ImageSize(),
		Labels:      make([]label.Label, len(c.labels)),
		Selected:    c.selected,
		Highlighted: c.highlighted,
		DimOpacity:  c.opts.DimOpacity,
		RegionMode:  c.regionMode,
		Panning:     c.panning,
	}
	copy(v.Labels, c.labels)
	if c.drag.active && c.drag.delta != (geometry.Point2D{}) {
		for i := range v.Labels {
			if v.Labels[i].ID == c.drag.id {
				v.Labels[i].Shape = v.Labels[i].Shape.Translate(c.drag.delta)
			}
		}
	}
	if c.builder.State() == StateCollecting {
		v.DraftTool = c.builder.Tool()
		v.Draft = c.builder.Draft()
		if p, ok := c.builder.Cursor(); ok {
			v.DraftCursor = &p
		}
	}
	if r, ok := c.region.Current(); ok {
		v.Region = &r
	}
	if c.pending != nil {
		v.Pending = c.pending.Shape
	}
	return v
}

// SetViewSize records the size of the drawing area. The first size after an
// image load refits the image.
func (c *Controller) SetViewSize(width, height float64) {
	c.do(func(b *batch) {
		old := c.vp.ViewSize()
		c.vp.SetViewSize(width, height)
		if old.Width <= 0 || old.Height <= 0 {
			c.vp.Fit()
		}
		b.changed = true
	})
}

// ImageLoaded fits a newly loaded image and enables drawing. Any shape in
// progress belongs to the previous image and is dropped.
func (c *Controller) ImageLoaded(width, height float64) error {
	var err error
	c.do(func(b *batch) {
		if err = c.vp.Load(width, height); err != nil {
			c.failLocked()
			b.changed = true
			return
		}
		c.resetInteractionLocked()
		c.log.Debug("image loaded", "width", width, "height", height, "scale", c.vp.Scale())
		b.changed = true
	})
	return err
}

// ImageLoading marks the viewport not ready while the next image is fetched.
// The tool is kept.
func (c *Controller) ImageLoading() {
	c.do(func(b *batch) {
		c.vp.Fail()
		c.resetInteractionLocked()
		c.regionMode = false
		b.changed = true
	})
}

// ImageFailed leaves the viewport not ready and falls back to the select
// tool.
func (c *Controller) ImageFailed(cause error) {
	c.do(func(b *batch) {
		c.failLocked()
		c.log.Warn("image load failed", "error", cause)
		b.changed = true
	})
}

func (c *Controller) failLocked() {
	c.vp.Fail()
	c.resetInteractionLocked()
	c.regionMode = false
	if c.tool.Draws() {
		c.tool = ToolSelect
	}
}

func (c *Controller) resetInteractionLocked() {
	c.builder.Cancel()
	c.region.Reset()
	c.pending = nil
	c.selected = ""
	c.highlighted = ""
	c.panning = false
	c.drag.active = false
}

// SetLabels replaces the displayed label collection. Selection and highlight
// survive only if their label is still present.
func (c *Controller) SetLabels(labels []label.Label) {
	c.do(func(b *batch) {
		c.labels = append([]label.Label(nil), labels...)
		if c.indexLocked(c.selected) < 0 {
			c.selected = ""
		}
		if c.indexLocked(c.highlighted) < 0 {
			c.highlighted = ""
		}
		if c.drag.active && c.indexLocked(c.drag.id) < 0 {
			c.drag.active = false
		}
		b.changed = true
	})
}

func (c *Controller) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, l := range c.labels {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// SetTool switches tools, discarding any shape in progress.
func (c *Controller) SetTool(t Tool) error {
	var err error
	c.do(func(b *batch) {
		switch {
		case c.regionMode:
			err = ErrRegionModeActive
		case t.Draws() && !c.vp.Ready():
			err = ErrImageNotReady
		case t != c.tool:
			c.builder.Cancel()
			c.drag.active = false
			c.tool = t
			b.changed = true
		}
	})
	return err
}

// Cancel discards the shape or region drag in progress.
func (c *Controller) Cancel() {
	c.do(func(b *batch) {
		c.builder.Cancel()
		c.region.Reset()
		c.drag.active = false
		b.changed = true
	})
}

// SetSpaceHeld records the temporary-pan modifier.
func (c *Controller) SetSpaceHeld(held bool) {
	c.do(func(b *batch) {
		c.spaceHeld = held
	})
}

// ZoomIn zooms about the view center.
func (c *Controller) ZoomIn() {
	c.do(func(b *batch) {
		c.vp.ZoomIn()
		b.changed = true
	})
}

// ZoomOut zooms out about the view center.
func (c *Controller) ZoomOut() {
	c.do(func(b *batch) {
		c.vp.ZoomOut()
		b.changed = true
	})
}

// ZoomAt zooms about the screen point p, as a wheel does.
func (c *Controller) ZoomAt(p geometry.Point2D, in bool) {
	c.do(func(b *batch) {
		if !c.vp.Ready() {
			return
		}
		c.vp.ZoomAt(p, in)
		b.changed = true
	})
}

// Wheel zooms about p for a wheel step. Positive dy scrolls away from the
// user and zooms in; zero is ignored.
func (c *Controller) Wheel(p geometry.Point2D, dy float64) {
	if dy == 0 {
		return
	}
	c.ZoomAt(p, dy > 0)
}

// ResetView fits the image to the view again.
func (c *Controller) ResetView() {
	c.do(func(b *batch) {
		c.vp.Fit()
		b.changed = true
	})
}

// PointerDown handles a button press at screen point p.
func (c *Controller) PointerDown(p geometry.Point2D, btn Button) {
	c.do(func(b *batch) {
		if c.pending != nil {
			return
		}
		if btn == ButtonMiddle || c.spaceHeld || (c.tool == ToolMove && !c.regionMode) {
			c.panning = true
			c.panLast = p
			b.changed = true
			return
		}
		if btn != ButtonPrimary || !c.vp.Ready() {
			return
		}

		pt := c.vp.ToImage(p)
		if c.regionMode {
			c.region.Press(pt)
			b.changed = true
			return
		}

		switch c.tool {
		case ToolSelect:
			c.pressSelectLocked(pt)
		case ToolRect, ToolPolygon, ToolPoint:
			if pending, ok := c.builder.Press(c.tool, pt); ok {
				c.raisePendingLocked(b, pending)
			}
		}
		b.changed = true
	})
}

func (c *Controller) pressSelectLocked(pt geometry.Point2D) {
	hit, ok := HitTest(c.labels, pt, c.opts.PointHitRadius)
	if !ok {
		c.selected = ""
		return
	}
	c.drag.active = true
	c.drag.id = hit.ID
	c.drag.start = pt
	c.drag.delta = geometry.Point2D{}
	c.drag.wasSelected = c.selected == hit.ID
	c.selected = hit.ID
}

// PointerMove handles pointer motion to screen point p, with or without a
// button held.
func (c *Controller) PointerMove(p geometry.Point2D) {
	c.do(func(b *batch) {
		if c.panning {
			d := p.Sub(c.panLast)
			c.vp.Pan(d.X, d.Y)
			c.panLast = p
			b.changed = true
			return
		}
		if !c.vp.Ready() {
			return
		}

		pt := c.vp.ToImage(p)
		switch {
		case c.regionMode:
			if _, ok := c.region.Current(); ok {
				c.region.Move(pt)
				b.changed = true
			}
		case c.drag.active:
			c.drag.delta = pt.Sub(c.drag.start)
			b.changed = true
		case c.builder.State() == StateCollecting:
			c.builder.Move(pt)
			b.changed = true
		case c.tool == ToolSelect:
			id := ""
			if hit, ok := HitTest(c.labels, pt, c.opts.PointHitRadius); ok {
				id = hit.ID
			}
			if id != c.highlighted {
				c.highlighted = id
				b.changed = true
			}
		}
	})
}

// PointerUp handles a button release at screen point p.
func (c *Controller) PointerUp(p geometry.Point2D) {
	c.do(func(b *batch) {
		if c.panning {
			c.panning = false
			b.changed = true
			return
		}
		if !c.vp.Ready() {
			return
		}

		pt := c.vp.ToImage(p)
		switch {
		case c.regionMode:
			if _, dragging := c.region.Current(); !dragging {
				return
			}
			if box, ok := c.region.Release(pt); ok {
				c.regionMode = false
				c.log.Debug("reference region selected", "x", box.X, "y", box.Y, "w", box.Width, "h", box.Height)
				if cb := c.onRegion; cb != nil {
					b.add(func() { cb(box) })
				}
			}
			b.changed = true
		case c.drag.active:
			c.releaseDragLocked(b, pt)
		case c.builder.State() == StateCollecting:
			if pending, ok := c.builder.Release(pt); ok {
				c.raisePendingLocked(b, pending)
			}
			b.changed = true
		}
	})
}

func (c *Controller) releaseDragLocked(b *batch, pt geometry.Point2D) {
	id := c.drag.id
	delta := pt.Sub(c.drag.start)
	wasSelected := c.drag.wasSelected
	c.drag.active = false
	b.changed = true

	i := c.indexLocked(id)
	if i < 0 {
		return
	}
	if delta == (geometry.Point2D{}) {
		if wasSelected {
			c.selected = ""
		}
		return
	}

	moved := c.labels[i].Shape.Translate(delta)
	c.labels[i].Shape = moved
	host := c.host
	b.add(func() { host.UpdateLabel(id, label.SetShape(moved)) })
}

// DoubleClick completes a polygon while one is being drawn. In the select
// tool it deletes the label under the pointer instead.
func (c *Controller) DoubleClick(p geometry.Point2D) {
	c.do(func(b *batch) {
		if c.pending != nil || c.regionMode || !c.vp.Ready() {
			return
		}
		pt := c.vp.ToImage(p)

		switch c.tool {
		case ToolPolygon:
			if pending, ok := c.builder.Complete(); ok {
				c.raisePendingLocked(b, pending)
				b.changed = true
			}
		case ToolSelect:
			hit, ok := HitTest(c.labels, pt, c.opts.PointHitRadius)
			if !ok {
				return
			}
			c.drag.active = false
			c.deleteLocked(b, hit.ID)
		}
	})
}

// CompletePolygon closes the polygon in progress, as a double-click would.
func (c *Controller) CompletePolygon() bool {
	var ok bool
	c.do(func(b *batch) {
		var pending Pending
		if pending, ok = c.builder.Complete(); ok {
			c.raisePendingLocked(b, pending)
			b.changed = true
		}
	})
	return ok
}

func (c *Controller) raisePendingLocked(b *batch, p Pending) {
	c.pending = &p
	c.log.Debug("shape ready", "type", p.Shape.Kind())
	if cb := c.onShapeReady; cb != nil {
		b.add(func() { cb(p) })
	}
}

// ConfirmCategory turns the pending shape into a label and hands it to the
// host without an id.
func (c *Controller) ConfirmCategory(category string) error {
	category = strings.TrimSpace(category)
	var err error
	c.do(func(b *batch) {
		if c.pending == nil {
			err = ErrNoPendingShape
			return
		}
		if category == "" {
			err = ErrEmptyCategory
			return
		}
		l := label.Label{Category: category, Shape: c.pending.Shape}
		c.pending = nil
		host := c.host
		b.add(func() { host.AddLabel(l) })
		b.changed = true
	})
	return err
}

// DismissCategory discards the pending shape.
func (c *Controller) DismissCategory() {
	c.do(func(b *batch) {
		if c.pending != nil {
			c.pending = nil
			c.log.Debug("pending shape discarded")
			b.changed = true
		}
	})
}

// ProposeCategory forwards a new category name to the host.
func (c *Controller) ProposeCategory(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyCategory
	}
	c.do(func(b *batch) {
		host := c.host
		b.add(func() { host.AddCategory(name) })
	})
	return nil
}

// Select toggles the exclusive selection of a label. An empty id clears it.
func (c *Controller) Select(id string) {
	c.do(func(b *batch) {
		switch {
		case id == "" || id == c.selected:
			c.selected = ""
		case c.indexLocked(id) >= 0:
			c.selected = id
		default:
			return
		}
		b.changed = true
	})
}

// SetHighlight emphasizes a label, dimming the others. An empty id clears
// the highlight.
func (c *Controller) SetHighlight(id string) {
	c.do(func(b *batch) {
		if id != "" && c.indexLocked(id) < 0 {
			return
		}
		if id != c.highlighted {
			c.highlighted = id
			b.changed = true
		}
	})
}

// DeleteSelected asks the host to delete the selected label.
func (c *Controller) DeleteSelected() bool {
	var ok bool
	c.do(func(b *batch) {
		if c.selected == "" || c.regionMode {
			return
		}
		ok = true
		c.deleteLocked(b, c.selected)
	})
	return ok
}

func (c *Controller) deleteLocked(b *batch, id string) {
	if i := c.indexLocked(id); i >= 0 {
		c.labels = append(c.labels[:i:i], c.labels[i+1:]...)
	}
	if c.selected == id {
		c.selected = ""
	}
	if c.highlighted == id {
		c.highlighted = ""
	}
	host := c.host
	b.add(func() { host.DeleteLabel(id) })
	b.changed = true
}

// EnterRegionMode starts reference region selection. Hit-testing and tool
// changes are disabled until a region is reported or the mode is exited.
func (c *Controller) EnterRegionMode() error {
	var err error
	c.do(func(b *batch) {
		if !c.vp.Ready() {
			err = ErrImageNotReady
			return
		}
		c.builder.Cancel()
		c.drag.active = false
		c.highlighted = ""
		c.regionMode = true
		b.changed = true
	})
	return err
}

// ExitRegionMode leaves region selection without reporting.
func (c *Controller) ExitRegionMode() {
	c.do(func(b *batch) {
		if c.regionMode {
			c.regionMode = false
			c.region.Reset()
			b.changed = true
		}
	})
}
