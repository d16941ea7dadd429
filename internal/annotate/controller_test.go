package annotate

import (
	"fmt"
	"sync"
	"testing"

	"image-annotator/internal/label"
	"image-annotator/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type updateCall struct {
	id string
	u  label.Update
}

// recordingHost stores labels the way a page would and echoes them back to
// the controller.
type recordingHost struct {
	mu         sync.Mutex
	ctrl       *Controller
	labels     []label.Label
	added      []label.Label
	updates    []updateCall
	deleted    []string
	categories []string
	nextID     int
}

func (h *recordingHost) AddLabel(l label.Label) {
	h.mu.Lock()
	h.added = append(h.added, l)
	h.nextID++
	l.ID = fmt.Sprintf("l-%d", h.nextID)
	h.labels = append(h.labels, l)
	labels := append([]label.Label(nil), h.labels...)
	h.mu.Unlock()
	h.ctrl.SetLabels(labels)
}

func (h *recordingHost) UpdateLabel(id string, u label.Update) {
	h.mu.Lock()
	h.updates = append(h.updates, updateCall{id, u})
	for i := range h.labels {
		if h.labels[i].ID == id {
			h.labels[i], _ = u.Apply(h.labels[i])
		}
	}
	labels := append([]label.Label(nil), h.labels...)
	h.mu.Unlock()
	h.ctrl.SetLabels(labels)
}

func (h *recordingHost) DeleteLabel(id string) {
	h.mu.Lock()
	h.deleted = append(h.deleted, id)
	kept := h.labels[:0]
	for _, l := range h.labels {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	h.labels = kept
	labels := append([]label.Label(nil), h.labels...)
	h.mu.Unlock()
	h.ctrl.SetLabels(labels)
}

func (h *recordingHost) AddCategory(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.categories = append(h.categories, name)
}

func (h *recordingHost) setLabels(labels ...label.Label) {
	h.mu.Lock()
	h.labels = labels
	h.mu.Unlock()
	h.ctrl.SetLabels(labels)
}

// newTestController returns a controller whose screen and image spaces
// coincide: a 900x900 image in a 900x900 view with no fit margin.
func newTestController(t *testing.T) (*Controller, *recordingHost, *[]Pending) {
	t.Helper()
	host := &recordingHost{}
	opts := DefaultOptions()
	opts.Viewport.FitMargin = 1
	c := NewController(host, opts)
	host.ctrl = c

	var pending []Pending
	c.OnShapeReady(func(p Pending) { pending = append(pending, p) })

	c.SetViewSize(900, 900)
	require.NoError(t, c.ImageLoaded(900, 900))
	require.Equal(t, 1.0, c.Scale())
	return c, host, &pending
}

func TestControllerRectScenario(t *testing.T) {
	c, host, pending := newTestController(t)
	require.NoError(t, c.SetTool(ToolRect))

	c.PointerDown(geometry.Pt(300, 300), ButtonPrimary)
	c.PointerMove(geometry.Pt(200, 180))
	v := c.View()
	assert.Equal(t, ToolRect, v.DraftTool)
	assert.Equal(t, []geometry.Point2D{geometry.Pt(300, 300), geometry.Pt(200, 180)}, v.Draft)

	c.PointerUp(geometry.Pt(100, 100))
	require.Len(t, *pending, 1)
	assert.True(t, c.HasPending())
	assert.Empty(t, host.added, "no label before a category is chosen")

	require.NoError(t, c.ConfirmCategory("  car "))
	require.Len(t, host.added, 1)
	added := host.added[0]
	assert.Empty(t, added.ID, "host assigns ids")
	assert.Equal(t, "car", added.Category)
	assert.Equal(t, []geometry.Point2D{geometry.Pt(100, 100), geometry.Pt(300, 300)}, added.Shape.Points())
	assert.False(t, c.HasPending())

	v = c.View()
	require.Len(t, v.Labels, 1)
	assert.Equal(t, "l-1", v.Labels[0].ID)
}

func TestControllerTinyRectDiscardedSilently(t *testing.T) {
	c, host, pending := newTestController(t)
	require.NoError(t, c.SetTool(ToolRect))

	c.PointerDown(geometry.Pt(10, 10), ButtonPrimary)
	c.PointerUp(geometry.Pt(13, 200))

	assert.Empty(t, *pending)
	assert.Empty(t, host.added)
	assert.False(t, c.HasPending())
}

func TestControllerPolygonNeedsThreeVertices(t *testing.T) {
	c, host, pending := newTestController(t)
	require.NoError(t, c.SetTool(ToolPolygon))

	c.PointerDown(geometry.Pt(10, 10), ButtonPrimary)
	c.PointerUp(geometry.Pt(10, 10))
	c.PointerDown(geometry.Pt(100, 10), ButtonPrimary)
	c.PointerUp(geometry.Pt(100, 10))
	c.DoubleClick(geometry.Pt(100, 10))
	assert.Empty(t, *pending, "two vertices: double-click is a no-op")
	assert.Len(t, c.View().Draft, 2)

	c.PointerDown(geometry.Pt(100, 100), ButtonPrimary)
	c.PointerUp(geometry.Pt(100, 100))
	c.DoubleClick(geometry.Pt(100, 100))
	require.Len(t, *pending, 1)
	assert.Len(t, (*pending)[0].Shape.Points(), 3)

	require.NoError(t, c.ConfirmCategory("road"))
	require.Len(t, host.added, 1)
	assert.Equal(t, label.KindPolygon, host.added[0].Kind())
}

func TestControllerPointCommitsOnPress(t *testing.T) {
	c, _, pending := newTestController(t)
	require.NoError(t, c.SetTool(ToolPoint))

	c.PointerDown(geometry.Pt(50, 80), ButtonPrimary)
	require.Len(t, *pending, 1)
	assert.Equal(t, label.Point{At: geometry.Pt(50, 80)}, (*pending)[0].Shape)

	// Further input waits for the category step
	c.PointerDown(geometry.Pt(60, 90), ButtonPrimary)
	assert.Len(t, *pending, 1)
}

func TestControllerDismissDiscardsShape(t *testing.T) {
	c, host, _ := newTestController(t)
	require.NoError(t, c.SetTool(ToolPoint))

	c.PointerDown(geometry.Pt(50, 80), ButtonPrimary)
	c.DismissCategory()
	assert.False(t, c.HasPending())
	assert.ErrorIs(t, c.ConfirmCategory("car"), ErrNoPendingShape)
	assert.Empty(t, host.added)
}

func TestControllerConfirmRejectsBlankCategory(t *testing.T) {
	c, host, _ := newTestController(t)
	require.NoError(t, c.SetTool(ToolPoint))
	c.PointerDown(geometry.Pt(5, 5), ButtonPrimary)

	assert.ErrorIs(t, c.ConfirmCategory("   "), ErrEmptyCategory)
	assert.True(t, c.HasPending())
	assert.Empty(t, host.added)
}

func TestControllerToolSwitchClearsDraft(t *testing.T) {
	c, _, pending := newTestController(t)
	require.NoError(t, c.SetTool(ToolPolygon))
	c.PointerDown(geometry.Pt(10, 10), ButtonPrimary)
	c.PointerDown(geometry.Pt(50, 10), ButtonPrimary)

	require.NoError(t, c.SetTool(ToolRect))
	assert.Empty(t, c.View().Draft)

	require.NoError(t, c.SetTool(ToolPolygon))
	c.PointerDown(geometry.Pt(60, 60), ButtonPrimary)
	c.DoubleClick(geometry.Pt(60, 60))
	assert.Empty(t, *pending)
}

func TestControllerCancelClearsDraft(t *testing.T) {
	c, _, _ := newTestController(t)
	require.NoError(t, c.SetTool(ToolRect))
	c.PointerDown(geometry.Pt(10, 10), ButtonPrimary)
	c.Cancel()
	assert.Empty(t, c.View().Draft)
	c.PointerUp(geometry.Pt(300, 300))
	assert.False(t, c.HasPending())
}

func TestControllerNotReadyBlocksDrawing(t *testing.T) {
	host := &recordingHost{}
	c := NewController(host, DefaultOptions())
	host.ctrl = c
	c.SetViewSize(800, 600)

	assert.ErrorIs(t, c.SetTool(ToolRect), ErrImageNotReady)
	assert.ErrorIs(t, c.EnterRegionMode(), ErrImageNotReady)
	assert.NoError(t, c.SetTool(ToolMove), "non-drawing tools stay available")

	require.NoError(t, c.ImageLoaded(400, 300))
	require.NoError(t, c.SetTool(ToolPolygon))
	c.ImageFailed(fmt.Errorf("404"))
	assert.False(t, c.Ready())
	assert.Equal(t, ToolSelect, c.Tool())
	assert.ErrorIs(t, c.SetTool(ToolPoint), ErrImageNotReady)
}

func TestControllerImageLoadingKeepsTool(t *testing.T) {
	c, _, pending := newTestController(t)
	require.NoError(t, c.SetTool(ToolPolygon))
	c.PointerDown(geometry.Pt(10, 10), ButtonPrimary)
	require.Len(t, c.View().Draft, 1)

	c.ImageLoading()
	assert.False(t, c.Ready())
	assert.Equal(t, ToolPolygon, c.Tool())
	assert.Empty(t, c.View().Draft)

	c.PointerDown(geometry.Pt(20, 20), ButtonPrimary)
	assert.Empty(t, c.View().Draft, "no drawing while loading")

	require.NoError(t, c.ImageLoaded(900, 900))
	require.NoError(t, c.SetTool(ToolPoint))
	c.PointerDown(geometry.Pt(20, 20), ButtonPrimary)
	assert.Len(t, *pending, 1)
}

func TestControllerSelectionToggles(t *testing.T) {
	c, host, _ := newTestController(t)
	host.setLabels(
		label.Label{ID: "a", Category: "car", Shape: label.Rect{A: geometry.Pt(0, 0), B: geometry.Pt(100, 100)}},
		label.Label{ID: "b", Category: "bus", Shape: label.Point{At: geometry.Pt(500, 500)}},
	)

	click := func(x, y float64) {
		c.PointerDown(geometry.Pt(x, y), ButtonPrimary)
		c.PointerUp(geometry.Pt(x, y))
	}

	click(50, 50)
	assert.Equal(t, "a", c.Selected())
	click(508, 500)
	assert.Equal(t, "b", c.Selected(), "selection is exclusive")
	click(505, 505)
	assert.Empty(t, c.Selected(), "second click toggles off")
	click(50, 50)
	click(700, 10)
	assert.Empty(t, c.Selected(), "empty space clears")

	c.Select("a")
	assert.Equal(t, "a", c.Selected())
	c.Select("a")
	assert.Empty(t, c.Selected())
	c.Select("missing")
	assert.Empty(t, c.Selected())
}

func TestControllerHoverHighlight(t *testing.T) {
	c, host, _ := newTestController(t)
	host.setLabels(
		label.Label{ID: "a", Shape: label.Rect{A: geometry.Pt(0, 0), B: geometry.Pt(100, 100)}},
		label.Label{ID: "b", Shape: label.Rect{A: geometry.Pt(200, 200), B: geometry.Pt(300, 300)}},
	)

	c.Select("b")
	c.PointerMove(geometry.Pt(50, 50))
	assert.Equal(t, "a", c.Highlighted())
	assert.Equal(t, "b", c.Selected(), "highlight is independent of selection")

	v := c.View()
	assert.Equal(t, DefaultDimOpacity, v.DimOpacity)

	c.PointerMove(geometry.Pt(150, 150))
	assert.Empty(t, c.Highlighted())

	c.SetHighlight("b")
	assert.Equal(t, "b", c.Highlighted())
	c.SetHighlight("zzz")
	assert.Equal(t, "b", c.Highlighted())
	c.SetHighlight("")
	assert.Empty(t, c.Highlighted())
}

func TestControllerDragMovesSelectedLabel(t *testing.T) {
	c, host, _ := newTestController(t)
	host.setLabels(label.Label{ID: "a", Category: "car", Shape: label.Rect{A: geometry.Pt(0, 0), B: geometry.Pt(100, 100)}})

	c.PointerDown(geometry.Pt(50, 50), ButtonPrimary)
	c.PointerMove(geometry.Pt(60, 70))
	v := c.View()
	assert.Equal(t, []geometry.Point2D{geometry.Pt(10, 20), geometry.Pt(110, 120)}, v.Labels[0].Shape.Points(), "preview carries the offset")
	assert.Empty(t, host.updates, "no update until release")

	c.PointerUp(geometry.Pt(60, 70))
	require.Len(t, host.updates, 1)
	assert.Equal(t, "a", host.updates[0].id)
	assert.Equal(t, label.Rect{A: geometry.Pt(10, 20), B: geometry.Pt(110, 120)}, host.updates[0].u.Shape)
	assert.Equal(t, "a", c.Selected())
}

func TestControllerDoubleClickDeletesInSelectTool(t *testing.T) {
	c, host, _ := newTestController(t)
	host.setLabels(
		label.Label{ID: "a", Shape: label.Rect{A: geometry.Pt(0, 0), B: geometry.Pt(100, 100)}},
		label.Label{ID: "b", Shape: label.Rect{A: geometry.Pt(200, 200), B: geometry.Pt(300, 300)}},
	)

	c.DoubleClick(geometry.Pt(400, 400))
	assert.Empty(t, host.deleted)

	c.Select("a")
	c.DoubleClick(geometry.Pt(10, 10))
	assert.Equal(t, []string{"a"}, host.deleted)
	assert.Empty(t, c.Selected())
	assert.Len(t, c.View().Labels, 1)

	require.NoError(t, c.SetTool(ToolRect))
	c.DoubleClick(geometry.Pt(250, 250))
	assert.Equal(t, []string{"a"}, host.deleted, "drawing tools never delete")
}

func TestControllerDeleteSelected(t *testing.T) {
	c, host, _ := newTestController(t)
	host.setLabels(label.Label{ID: "a", Shape: label.Point{At: geometry.Pt(10, 10)}})

	assert.False(t, c.DeleteSelected())
	c.Select("a")
	assert.True(t, c.DeleteSelected())
	assert.Equal(t, []string{"a"}, host.deleted)
}

func TestControllerRegionMode(t *testing.T) {
	c, host, _ := newTestController(t)
	host.setLabels(label.Label{ID: "a", Shape: label.Rect{A: geometry.Pt(0, 0), B: geometry.Pt(100, 100)}})

	var regions []geometry.Rect
	c.OnRegionSelected(func(r geometry.Rect) { regions = append(regions, r) })

	require.NoError(t, c.EnterRegionMode())
	assert.ErrorIs(t, c.SetTool(ToolRect), ErrRegionModeActive)

	c.PointerDown(geometry.Pt(10, 10), ButtonPrimary)
	c.PointerMove(geometry.Pt(15, 12))
	assert.NotNil(t, c.View().Region)
	c.PointerUp(geometry.Pt(15, 12))
	assert.Empty(t, regions, "5x2 region is discarded")
	assert.True(t, c.InRegionMode())
	assert.Empty(t, c.Selected(), "hit-testing is disabled")
	assert.Empty(t, host.added)

	c.PointerDown(geometry.Pt(30, 30), ButtonPrimary)
	c.PointerUp(geometry.Pt(10, 10))
	require.Len(t, regions, 1)
	assert.Equal(t, geometry.Rect{X: 10, Y: 10, Width: 20, Height: 20}, regions[0])
	assert.False(t, c.InRegionMode())
	assert.NoError(t, c.SetTool(ToolRect))
}

func TestControllerExitRegionMode(t *testing.T) {
	c, _, _ := newTestController(t)
	require.NoError(t, c.EnterRegionMode())
	c.PointerDown(geometry.Pt(10, 10), ButtonPrimary)
	c.ExitRegionMode()
	assert.False(t, c.InRegionMode())
	assert.Nil(t, c.View().Region)
}

func TestControllerPanning(t *testing.T) {
	c, _, pending := newTestController(t)

	require.NoError(t, c.SetTool(ToolMove))
	c.PointerDown(geometry.Pt(100, 100), ButtonPrimary)
	c.PointerMove(geometry.Pt(130, 90))
	c.PointerUp(geometry.Pt(130, 90))
	assert.Equal(t, geometry.Pt(30, -10), c.View().Position)

	// Space held pans even with a drawing tool
	require.NoError(t, c.SetTool(ToolPoint))
	c.SetSpaceHeld(true)
	c.PointerDown(geometry.Pt(0, 0), ButtonPrimary)
	c.PointerMove(geometry.Pt(10, 10))
	c.PointerUp(geometry.Pt(10, 10))
	c.SetSpaceHeld(false)
	assert.Empty(t, *pending)
	assert.Equal(t, geometry.Pt(40, 0), c.View().Position)

	// Middle button pans
	c.PointerDown(geometry.Pt(0, 0), ButtonMiddle)
	c.PointerMove(geometry.Pt(-40, 0))
	c.PointerUp(geometry.Pt(-40, 0))
	assert.Empty(t, *pending)
	assert.Equal(t, geometry.Pt(0, 0), c.View().Position)
}

func TestControllerWheelZoomKeepsPointerFixed(t *testing.T) {
	c, _, _ := newTestController(t)
	pointer := geometry.Pt(200, 700)
	before := c.ToImage(pointer)
	c.ZoomAt(pointer, true)
	after := c.ToImage(pointer)
	assert.InDelta(t, 1.2, c.Scale(), 1e-9)
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)

	c.ResetView()
	assert.Equal(t, 1.0, c.Scale())

	c.Wheel(pointer, -3)
	assert.InDelta(t, 1/1.2, c.Scale(), 1e-9)
	c.Wheel(pointer, 0)
	assert.InDelta(t, 1/1.2, c.Scale(), 1e-9)
}

func TestControllerProposeCategory(t *testing.T) {
	c, host, _ := newTestController(t)
	assert.ErrorIs(t, c.ProposeCategory(" "), ErrEmptyCategory)
	require.NoError(t, c.ProposeCategory("bicycle"))
	assert.Equal(t, []string{"bicycle"}, host.categories)
}

func TestControllerOnChangeFires(t *testing.T) {
	c, _, _ := newTestController(t)
	changes := 0
	c.OnChange(func() { changes++ })
	c.ZoomIn()
	c.ZoomOut()
	assert.Equal(t, 2, changes)
}

func TestControllerSetLabelsDropsStaleSelection(t *testing.T) {
	c, host, _ := newTestController(t)
	host.setLabels(label.Label{ID: "a", Shape: label.Point{At: geometry.Pt(10, 10)}})
	c.Select("a")
	c.SetHighlight("a")

	host.setLabels()
	assert.Empty(t, c.Selected())
	assert.Empty(t, c.Highlighted())
}
