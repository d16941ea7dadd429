package geometry

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectFromCornersNormalizes(t *testing.T) {
	tests := []struct {
		name string
		a, b Point2D
	}{
		{"top-left to bottom-right", Pt(100, 100), Pt(300, 300)},
		{"bottom-right to top-left", Pt(300, 300), Pt(100, 100)},
		{"top-right to bottom-left", Pt(300, 100), Pt(100, 300)},
		{"bottom-left to top-right", Pt(100, 300), Pt(300, 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RectFromCorners(tt.a, tt.b)
			assert.Equal(t, Pt(100, 100), r.Min())
			assert.Equal(t, Pt(300, 300), r.Max())
		})
	}
}

func TestRectContainsInclusiveEdges(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 20, Height: 10}
	assert.True(t, r.Contains(Pt(10, 10)))
	assert.True(t, r.Contains(Pt(30, 20)))
	assert.True(t, r.Contains(Pt(15, 15)))
	assert.False(t, r.Contains(Pt(9.9, 15)))
	assert.False(t, r.Contains(Pt(15, 20.1)))
}

func TestRectNormalizeNegativeExtent(t *testing.T) {
	r := Rect{X: 50, Y: 40, Width: -20, Height: -10}.Normalize()
	assert.Equal(t, Rect{X: 30, Y: 30, Width: 20, Height: 10}, r)
}

func TestRectImageRectRoundsOutward(t *testing.T) {
	r := Rect{X: 1.5, Y: 2.2, Width: 3, Height: 3}
	assert.Equal(t, image.Rect(1, 2, 5, 6), r.ImageRect())
}

func TestPointOps(t *testing.T) {
	a, b := Pt(3, 4), Pt(1, 1)
	assert.Equal(t, Pt(4, 5), a.Add(b))
	assert.Equal(t, Pt(2, 3), a.Sub(b))
	assert.Equal(t, Pt(6, 8), a.Scale(2))
	assert.InDelta(t, 5.0, a.Distance(Point2D{}), 1e-9)
}

func TestBoundingBox(t *testing.T) {
	assert.Equal(t, Rect{}, BoundingBox(nil))
	box := BoundingBox([]Point2D{Pt(5, 8), Pt(1, 9), Pt(3, 2)})
	assert.Equal(t, Rect{X: 1, Y: 2, Width: 4, Height: 7}, box)
}

func TestPointInPolygon(t *testing.T) {
	// Concave "L" shape
	poly := []Point2D{Pt(0, 0), Pt(10, 0), Pt(10, 4), Pt(4, 4), Pt(4, 10), Pt(0, 10)}

	assert.True(t, PointInPolygon(Pt(2, 2), poly))
	assert.True(t, PointInPolygon(Pt(2, 8), poly))
	assert.True(t, PointInPolygon(Pt(8, 2), poly))
	assert.False(t, PointInPolygon(Pt(8, 8), poly), "notch of the L is outside")
	assert.False(t, PointInPolygon(Pt(-1, 5), poly))
	assert.False(t, PointInPolygon(Pt(2, 2), poly[:2]), "degenerate polygon never contains")
}

func TestPointInPolygonSelfIntersectingUsesEvenOdd(t *testing.T) {
	// Bow-tie: the two lobes are inside, the crossing point region is split
	bowtie := []Point2D{Pt(0, 0), Pt(10, 10), Pt(10, 0), Pt(0, 10)}
	assert.True(t, PointInPolygon(Pt(1, 5), bowtie))
	assert.True(t, PointInPolygon(Pt(9, 5), bowtie))
	assert.False(t, PointInPolygon(Pt(5, 1), bowtie))
}

func TestPolygonArea(t *testing.T) {
	square := []Point2D{Pt(0, 0), Pt(4, 0), Pt(4, 4), Pt(0, 4)}
	assert.InDelta(t, 16.0, PolygonArea(square), 1e-9)
	assert.Zero(t, PolygonArea(square[:2]))
}
