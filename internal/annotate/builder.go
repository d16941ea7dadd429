package annotate

import (
	"math"

	"image-annotator/internal/label"
	"image-annotator/pkg/geometry"
)

// DefaultMinRectSize is the drag extent a rect must exceed on both axes.
const DefaultMinRectSize = 5.0

// BuildState is the shape builder state.
type BuildState int

const (
	StateIdle BuildState = iota
	StateCollecting
)

func (s BuildState) String() string {
	if s == StateCollecting {
		return "collecting"
	}
	return "idle"
}

// Pending is a committed shape waiting for a category. It is not a label yet.
type Pending struct {
	Shape label.Shape
}

// Builder accumulates image-space points for the active drawing tool.
type Builder struct {
	minRect float64
	tool    Tool
	state   BuildState
	points  []geometry.Point2D
	cursor  *geometry.Point2D
}

// NewBuilder creates an idle builder. minRect <= 0 uses DefaultMinRectSize.
func NewBuilder(minRect float64) *Builder {
	if minRect <= 0 {
		minRect = DefaultMinRectSize
	}
	return &Builder{minRect: minRect}
}

// State returns idle or collecting.
func (b *Builder) State() BuildState { return b.state }

// Tool returns the tool of the shape in progress.
func (b *Builder) Tool() Tool { return b.tool }

// Draft returns a copy of the collected points.
func (b *Builder) Draft() []geometry.Point2D {
	return append([]geometry.Point2D(nil), b.points...)
}

// Cursor returns the last pointer position seen while collecting a polygon.
func (b *Builder) Cursor() (geometry.Point2D, bool) {
	if b.cursor == nil {
		return geometry.Point2D{}, false
	}
	return *b.cursor, true
}

// Press handles a pointer-down at p for tool. A point commits immediately;
// rect starts a drag; polygon starts or extends the vertex list.
func (b *Builder) Press(tool Tool, p geometry.Point2D) (Pending, bool) {
	if b.state == StateCollecting && b.tool != tool {
		b.Cancel()
	}
	switch tool {
	case ToolPoint:
		b.Cancel()
		return Pending{Shape: label.Point{At: p}}, true
	case ToolRect:
		b.tool = tool
		b.state = StateCollecting
		b.points = []geometry.Point2D{p, p}
	case ToolPolygon:
		b.tool = tool
		if b.state == StateIdle {
			b.state = StateCollecting
			b.points = []geometry.Point2D{p}
			return Pending{}, false
		}
		// The presses of a double-click land on the last vertex
		if last := b.points[len(b.points)-1]; last == p {
			return Pending{}, false
		}
		b.points = append(b.points, p)
	}
	return Pending{}, false
}

// Move tracks the pointer: the second rect corner, or the polygon preview
// cursor.
func (b *Builder) Move(p geometry.Point2D) {
	if b.state != StateCollecting {
		return
	}
	switch b.tool {
	case ToolRect:
		b.points[1] = p
	case ToolPolygon:
		b.cursor = &p
	}
}

// Release handles a pointer-up. Only a rect commits here, and only when the
// drag exceeds the minimum size on both axes; smaller drags are discarded.
func (b *Builder) Release(p geometry.Point2D) (Pending, bool) {
	if b.state != StateCollecting || b.tool != ToolRect {
		return Pending{}, false
	}
	start := b.points[0]
	b.Cancel()

	if math.Abs(p.X-start.X) > b.minRect && math.Abs(p.Y-start.Y) > b.minRect {
		return Pending{Shape: label.NewRect(start, p)}, true
	}
	return Pending{}, false
}

// Complete closes a polygon with at least three vertices. With fewer it is
// a no-op and collection continues.
func (b *Builder) Complete() (Pending, bool) {
	if b.state != StateCollecting || b.tool != ToolPolygon || len(b.points) < 3 {
		return Pending{}, false
	}
	shape := label.Polygon{Vertices: b.Draft()}
	b.Cancel()
	return Pending{Shape: shape}, true
}

// Cancel discards the shape in progress.
func (b *Builder) Cancel() {
	b.state = StateIdle
	b.points = nil
	b.cursor = nil
}
