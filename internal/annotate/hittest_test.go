package annotate

import (
	"testing"

	"image-annotator/internal/label"
	"image-annotator/pkg/geometry"

	"github.com/stretchr/testify/assert"
)

func TestContainsRectUsesNormalizedCorners(t *testing.T) {
	r := label.Rect{A: geometry.Pt(300, 300), B: geometry.Pt(100, 100)}
	assert.True(t, Contains(r, geometry.Pt(200, 200), DefaultPointHitRadius))
	assert.True(t, Contains(r, geometry.Pt(100, 300), DefaultPointHitRadius), "edge")
	assert.False(t, Contains(r, geometry.Pt(99, 200), DefaultPointHitRadius))
	assert.False(t, Contains(r, geometry.Pt(200, 301), DefaultPointHitRadius))
}

func TestContainsPointRadius(t *testing.T) {
	p := label.Point{At: geometry.Pt(100, 100)}
	tests := []struct {
		at   geometry.Point2D
		want bool
	}{
		{geometry.Pt(100, 100), true},
		{geometry.Pt(110, 100), true},
		{geometry.Pt(100, 90), true},
		{geometry.Pt(106, 106), true},
		{geometry.Pt(111, 100), false},
		{geometry.Pt(100, 89), false},
		{geometry.Pt(108, 108), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Contains(p, tt.at, DefaultPointHitRadius), "%v", tt.at)
	}
}

func TestContainsPolygon(t *testing.T) {
	tri := label.Polygon{Vertices: []geometry.Point2D{geometry.Pt(0, 0), geometry.Pt(100, 0), geometry.Pt(0, 100)}}
	assert.True(t, Contains(tri, geometry.Pt(10, 10), DefaultPointHitRadius))
	assert.False(t, Contains(tri, geometry.Pt(80, 80), DefaultPointHitRadius))
}

func TestHitTestTopMostWins(t *testing.T) {
	labels := []label.Label{
		{ID: "bottom", Shape: label.Rect{A: geometry.Pt(0, 0), B: geometry.Pt(100, 100)}},
		{ID: "top", Shape: label.Rect{A: geometry.Pt(50, 50), B: geometry.Pt(150, 150)}},
	}

	hit, ok := HitTest(labels, geometry.Pt(75, 75), DefaultPointHitRadius)
	assert.True(t, ok)
	assert.Equal(t, "top", hit.ID)

	hit, ok = HitTest(labels, geometry.Pt(10, 10), DefaultPointHitRadius)
	assert.True(t, ok)
	assert.Equal(t, "bottom", hit.ID)

	_, ok = HitTest(labels, geometry.Pt(200, 10), DefaultPointHitRadius)
	assert.False(t, ok)
}

func TestRegionSelectorMinimum(t *testing.T) {
	r := NewRegionSelector(0)

	r.Press(geometry.Pt(10, 10))
	_, ok := r.Release(geometry.Pt(15, 12))
	assert.False(t, ok, "5x2 region is discarded")

	r.Press(geometry.Pt(10, 10))
	_, ok = r.Release(geometry.Pt(20, 40))
	assert.False(t, ok, "width of exactly 10 is not enough")

	r.Press(geometry.Pt(30, 30))
	r.Move(geometry.Pt(0, 0))
	cur, dragging := r.Current()
	assert.True(t, dragging)
	assert.Equal(t, geometry.Rect{X: 0, Y: 0, Width: 30, Height: 30}, cur)

	box, ok := r.Release(geometry.Pt(10, 10))
	assert.True(t, ok)
	assert.Equal(t, geometry.Rect{X: 10, Y: 10, Width: 20, Height: 20}, box)

	_, dragging = r.Current()
	assert.False(t, dragging)
}
