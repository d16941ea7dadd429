package label

import (
	"errors"
	"fmt"
	"math"

	"image-annotator/pkg/geometry"
)

// Kind names the geometry of a label. It is fixed at creation.
type Kind string

const (
	KindRect    Kind = "rect"
	KindPolygon Kind = "polygon"
	KindPoint   Kind = "point"
)

// PointBoxSize is the side of the square used as the bounds of a point label.
const PointBoxSize = 10

// ErrInvalidShape reports coordinates that do not fit the label kind.
var ErrInvalidShape = errors.New("invalid shape")

// Shape is the closed set of label geometries: Rect, Polygon and Point.
// Coordinates are always in image space.
type Shape interface {
	Kind() Kind
	// Points returns the stored coordinates in order.
	Points() []geometry.Point2D
	// Bounds returns the normalized bounding box.
	Bounds() geometry.Rect
	// Translate returns a copy moved by d.
	Translate(d geometry.Point2D) Shape

	shape()
}

// Rect is a box given by two opposite corners in any order.
type Rect struct {
	A, B geometry.Point2D
}

// NewRect builds a Rect stored with normalized min/max corners.
func NewRect(a, b geometry.Point2D) Rect {
	box := geometry.RectFromCorners(a, b)
	return Rect{A: box.Min(), B: box.Max()}
}

func (Rect) Kind() Kind                     { return KindRect }
func (r Rect) Points() []geometry.Point2D   { return []geometry.Point2D{r.A, r.B} }
func (r Rect) Bounds() geometry.Rect        { return geometry.RectFromCorners(r.A, r.B) }
func (r Rect) Translate(d geometry.Point2D) Shape {
	return Rect{A: r.A.Add(d), B: r.B.Add(d)}
}
func (Rect) shape() {}

// Polygon is an implicitly closed ring of three or more vertices.
type Polygon struct {
	Vertices []geometry.Point2D
}

func (Polygon) Kind() Kind { return KindPolygon }

func (p Polygon) Points() []geometry.Point2D {
	return append([]geometry.Point2D(nil), p.Vertices...)
}

func (p Polygon) Bounds() geometry.Rect { return geometry.BoundingBox(p.Vertices) }

func (p Polygon) Translate(d geometry.Point2D) Shape {
	return Polygon{Vertices: geometry.Translate(p.Vertices, d)}
}

func (Polygon) shape() {}

// Point is a single coordinate.
type Point struct {
	At geometry.Point2D
}

func (Point) Kind() Kind                   { return KindPoint }
func (p Point) Points() []geometry.Point2D { return []geometry.Point2D{p.At} }

// Bounds treats the point as a PointBoxSize square centered on it.
func (p Point) Bounds() geometry.Rect {
	half := PointBoxSize / 2.0
	return geometry.Rect{X: p.At.X - half, Y: p.At.Y - half, Width: PointBoxSize, Height: PointBoxSize}
}

func (p Point) Translate(d geometry.Point2D) Shape { return Point{At: p.At.Add(d)} }
func (Point) shape()                               {}

// NewShape builds a shape of the given kind from raw coordinates, enforcing
// the cardinality of each kind: rect 2, polygon at least 3, point 1.
func NewShape(kind Kind, points []geometry.Point2D) (Shape, error) {
	for _, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, fmt.Errorf("%w: non-finite coordinate", ErrInvalidShape)
		}
	}
	switch kind {
	case KindRect:
		if len(points) != 2 {
			return nil, fmt.Errorf("%w: rect needs 2 points, got %d", ErrInvalidShape, len(points))
		}
		return Rect{A: points[0], B: points[1]}, nil
	case KindPolygon:
		if len(points) < 3 {
			return nil, fmt.Errorf("%w: polygon needs at least 3 points, got %d", ErrInvalidShape, len(points))
		}
		return Polygon{Vertices: append([]geometry.Point2D(nil), points...)}, nil
	case KindPoint:
		if len(points) != 1 {
			return nil, fmt.Errorf("%w: point needs 1 point, got %d", ErrInvalidShape, len(points))
		}
		return Point{At: points[0]}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidShape, kind)
	}
}

// ValidateShape checks a shape value built outside NewShape.
func ValidateShape(s Shape) error {
	if s == nil {
		return fmt.Errorf("%w: missing shape", ErrInvalidShape)
	}
	_, err := NewShape(s.Kind(), s.Points())
	return err
}
