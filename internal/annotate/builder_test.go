package annotate

import (
	"testing"

	"image-annotator/internal/label"
	"image-annotator/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderRectNormalizesAnyDirection(t *testing.T) {
	tests := []struct {
		name       string
		start, end geometry.Point2D
	}{
		{"down-right", geometry.Pt(100, 100), geometry.Pt(300, 300)},
		{"up-left", geometry.Pt(300, 300), geometry.Pt(100, 100)},
		{"up-right", geometry.Pt(100, 300), geometry.Pt(300, 100)},
		{"down-left", geometry.Pt(300, 100), geometry.Pt(100, 300)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(0)
			_, ok := b.Press(ToolRect, tt.start)
			require.False(t, ok)
			assert.Equal(t, StateCollecting, b.State())

			b.Move(geometry.Pt(200, 200))
			p, ok := b.Release(tt.end)
			require.True(t, ok)
			assert.Equal(t, []geometry.Point2D{geometry.Pt(100, 100), geometry.Pt(300, 300)}, p.Shape.Points())
			assert.Equal(t, StateIdle, b.State())
		})
	}
}

func TestBuilderRectMinimumSize(t *testing.T) {
	tests := []struct {
		name string
		end  geometry.Point2D
		want bool
	}{
		{"both above", geometry.Pt(6, 6), true},
		{"dx equal to minimum", geometry.Pt(5, 50), false},
		{"dy equal to minimum", geometry.Pt(50, -5), false},
		{"micro click", geometry.Pt(0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(DefaultMinRectSize)
			b.Press(ToolRect, geometry.Pt(0, 0))
			_, ok := b.Release(tt.end)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, StateIdle, b.State())
		})
	}
}

func TestBuilderPolygon(t *testing.T) {
	b := NewBuilder(0)

	b.Press(ToolPolygon, geometry.Pt(0, 0))
	b.Press(ToolPolygon, geometry.Pt(10, 0))
	_, ok := b.Complete()
	assert.False(t, ok, "two vertices cannot close")
	assert.Equal(t, StateCollecting, b.State())

	_, ok = b.Release(geometry.Pt(10, 0))
	assert.False(t, ok, "pointer-up never commits a polygon")

	b.Move(geometry.Pt(7, 7))
	cursor, ok := b.Cursor()
	require.True(t, ok)
	assert.Equal(t, geometry.Pt(7, 7), cursor)

	b.Press(ToolPolygon, geometry.Pt(10, 10))
	b.Press(ToolPolygon, geometry.Pt(10, 10))
	assert.Len(t, b.Draft(), 3, "repeated press on the last vertex is ignored")

	p, ok := b.Complete()
	require.True(t, ok)
	poly, isPoly := p.Shape.(label.Polygon)
	require.True(t, isPoly)
	assert.Equal(t, []geometry.Point2D{geometry.Pt(0, 0), geometry.Pt(10, 0), geometry.Pt(10, 10)}, poly.Vertices)
	assert.Equal(t, StateIdle, b.State())
	assert.Empty(t, b.Draft())
}

func TestBuilderPointCommitsImmediately(t *testing.T) {
	b := NewBuilder(0)
	p, ok := b.Press(ToolPoint, geometry.Pt(50, 80))
	require.True(t, ok)
	assert.Equal(t, label.Point{At: geometry.Pt(50, 80)}, p.Shape)
	assert.Equal(t, StateIdle, b.State())
}

func TestBuilderCancel(t *testing.T) {
	b := NewBuilder(0)
	b.Press(ToolPolygon, geometry.Pt(0, 0))
	b.Press(ToolPolygon, geometry.Pt(10, 0))
	b.Cancel()
	assert.Equal(t, StateIdle, b.State())
	assert.Empty(t, b.Draft())

	_, ok := b.Complete()
	assert.False(t, ok)
}

func TestBuilderToolChangeMidShapeRestarts(t *testing.T) {
	b := NewBuilder(0)
	b.Press(ToolPolygon, geometry.Pt(0, 0))
	b.Press(ToolPolygon, geometry.Pt(10, 0))
	b.Press(ToolRect, geometry.Pt(20, 20))
	assert.Equal(t, ToolRect, b.Tool())
	assert.Equal(t, []geometry.Point2D{geometry.Pt(20, 20), geometry.Pt(20, 20)}, b.Draft())
}
