package label

import (
	"encoding/json"
	"math"
	"testing"

	"image-annotator/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pts(xy ...float64) []geometry.Point2D {
	out := make([]geometry.Point2D, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		out = append(out, geometry.Pt(xy[i], xy[i+1]))
	}
	return out
}

func TestNewShapeCardinality(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		points  []geometry.Point2D
		wantErr bool
	}{
		{"rect ok", KindRect, pts(0, 0, 10, 10), false},
		{"rect one point", KindRect, pts(0, 0), true},
		{"rect three points", KindRect, pts(0, 0, 1, 1, 2, 2), true},
		{"polygon ok", KindPolygon, pts(0, 0, 10, 0, 5, 5), false},
		{"polygon two points", KindPolygon, pts(0, 0, 10, 0), true},
		{"point ok", KindPoint, pts(3, 4), false},
		{"point two", KindPoint, pts(3, 4, 5, 6), true},
		{"unknown kind", Kind("circle"), pts(1, 1), true},
		{"nan", KindPoint, []geometry.Point2D{{X: math.NaN(), Y: 0}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewShape(tt.kind, tt.points)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidShape)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, s.Kind())
			assert.Equal(t, tt.points, s.Points())
		})
	}
}

func TestNewRectNormalizes(t *testing.T) {
	r := NewRect(geometry.Pt(300, 300), geometry.Pt(100, 100))
	assert.Equal(t, pts(100, 100, 300, 300), r.Points())
}

func TestBounds(t *testing.T) {
	rect := Rect{A: geometry.Pt(30, 40), B: geometry.Pt(10, 20)}
	assert.Equal(t, geometry.Rect{X: 10, Y: 20, Width: 20, Height: 20}, rect.Bounds())

	poly := Polygon{Vertices: pts(5, 5, 15, 0, 10, 20)}
	assert.Equal(t, geometry.Rect{X: 5, Y: 0, Width: 10, Height: 20}, poly.Bounds())

	point := Point{At: geometry.Pt(50, 50)}
	assert.Equal(t, geometry.Rect{X: 45, Y: 45, Width: 10, Height: 10}, point.Bounds())
}

func TestTranslate(t *testing.T) {
	d := geometry.Pt(5, -5)
	assert.Equal(t, Rect{A: geometry.Pt(5, -5), B: geometry.Pt(15, 5)}, Rect{B: geometry.Pt(10, 10)}.Translate(d))
	assert.Equal(t, Point{At: geometry.Pt(6, -4)}, Point{At: geometry.Pt(1, 1)}.Translate(d))

	orig := Polygon{Vertices: pts(0, 0, 10, 0, 5, 5)}
	moved := orig.Translate(d).(Polygon)
	assert.Equal(t, pts(5, -5, 15, -5, 10, 0), moved.Vertices)
	assert.Equal(t, pts(0, 0, 10, 0, 5, 5), orig.Vertices, "source untouched")
}

func TestCaption(t *testing.T) {
	assert.Equal(t, "car", Label{Category: "car"}.Caption())
	assert.Equal(t, "unknown (57%)", Label{Category: "unknown", Confidence: 0.567}.Caption())
	assert.Equal(t, "car (100%)", Label{Category: "car", Confidence: 1}.Caption())
}

func TestFormatCoordinates(t *testing.T) {
	rect := Label{Shape: Rect{A: geometry.Pt(300.4, 300), B: geometry.Pt(100, 99.6)}}
	assert.Equal(t, "X:100 Y:100 W:200 H:200", rect.FormatCoordinates())

	poly := Label{Shape: Polygon{Vertices: pts(0, 0, 1, 0, 1, 1, 0, 1)}}
	assert.Equal(t, "polygon: 4 points", poly.FormatCoordinates())

	point := Label{Shape: Point{At: geometry.Pt(49.5, 80.2)}}
	assert.Equal(t, "X:50 Y:80", point.FormatCoordinates())
}

func TestIsUnknown(t *testing.T) {
	assert.True(t, Label{Category: CategoryUnknown}.IsUnknown())
	assert.True(t, Label{Category: CategoryUnlabeled}.IsUnknown())
	assert.True(t, Label{}.IsUnknown())
	assert.False(t, Label{Category: "car"}.IsUnknown())
}

func TestUpdateApply(t *testing.T) {
	base := Label{ID: "l1", Category: "unknown", Shape: NewRect(geometry.Pt(0, 0), geometry.Pt(10, 10)), IsAISuggestion: true, Confidence: 0.4}

	t.Run("accept", func(t *testing.T) {
		got, err := Accept("car").Apply(base)
		require.NoError(t, err)
		assert.Equal(t, "car", got.Category)
		assert.False(t, got.IsAISuggestion)
		assert.Equal(t, base.Shape, got.Shape, "coordinates kept")
		assert.Equal(t, "l1", got.ID)
	})

	t.Run("move", func(t *testing.T) {
		moved := base.Shape.Translate(geometry.Pt(1, 1))
		got, err := SetShape(moved).Apply(base)
		require.NoError(t, err)
		assert.Equal(t, moved, got.Shape)
	})

	t.Run("kind is immutable", func(t *testing.T) {
		_, err := SetShape(Point{At: geometry.Pt(1, 1)}).Apply(base)
		assert.ErrorIs(t, err, ErrKindChange)
	})

	t.Run("confidence out of range", func(t *testing.T) {
		c := 1.5
		_, err := Update{Confidence: &c}.Apply(base)
		assert.Error(t, err)
	})

	assert.True(t, Update{}.Empty())
	assert.False(t, SetCategory("x").Empty())
}

func TestJSONWireForm(t *testing.T) {
	l := Label{
		ID:             "label-1",
		Category:       "car",
		Shape:          Rect{A: geometry.Pt(100, 100), B: geometry.Pt(300, 300)},
		IsAISuggestion: true,
		Confidence:     0.85,
	}
	data, err := json.Marshal(l)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"label-1","category":"car","type":"rect","coordinates":[[100,100],[300,300]],"isAiSuggestion":true,"confidence":0.85}`, string(data))

	var back Label
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, l, back)
}

func TestJSONRejectsBadCardinality(t *testing.T) {
	var l Label
	err := json.Unmarshal([]byte(`{"id":"x","category":"c","type":"polygon","coordinates":[[0,0],[1,1]]}`), &l)
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = json.Marshal(Label{ID: "y"})
	assert.Error(t, err)
}
