package vision

import (
	"context"
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"

	"image-annotator/internal/detect"
	"image-annotator/internal/label"
	"image-annotator/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct{}

func (stubDetector) Detect(context.Context, detect.Request) ([]label.Label, error) { return nil, nil }

func TestImageToMatEmpty(t *testing.T) {
	_, err := ImageToMat(image.NewRGBA(image.Rect(0, 0, 0, 5)))
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = grayMat(image.NewRGBA(image.Rect(3, 3, 3, 3)))
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestImageToMatIsBGR(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 20, 12, 21))
	img.Set(10, 20, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	img.Set(11, 20, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	mat, err := ImageToMat(img)
	require.NoError(t, err)
	defer mat.Close()

	assert.Equal(t, 2, mat.Cols())
	assert.Equal(t, 1, mat.Rows())
	assert.Equal(t, []uint8{50, 100, 200, 3, 2, 1}, []uint8{
		mat.GetUCharAt(0, 0), mat.GetUCharAt(0, 1), mat.GetUCharAt(0, 2),
		mat.GetUCharAt(0, 3), mat.GetUCharAt(0, 4), mat.GetUCharAt(0, 5),
	})
}

func TestOverlap(t *testing.T) {
	a := image.Rect(0, 0, 10, 10)
	assert.InDelta(t, 1.0, overlap(a, a), 1e-9)
	assert.Zero(t, overlap(a, image.Rect(10, 0, 20, 10)))
	// 50 px shared, 150 px union.
	assert.InDelta(t, 1.0/3, overlap(a, image.Rect(5, 0, 15, 10)), 1e-9)
}

func TestSuppressClearsNeighbourhood(t *testing.T) {
	result := gocv.NewMatWithSize(6, 6, gocv.MatTypeCV32F)
	defer result.Close()
	for y := range 6 {
		for x := range 6 {
			result.SetFloatAt(y, x, 0.9)
		}
	}

	suppress(result, image.Pt(1, 1), 2, 2)

	for y := range 6 {
		for x := range 6 {
			want := float32(0.9)
			if x <= 2 && y <= 2 {
				want = -1
			}
			assert.Equal(t, want, result.GetFloatAt(y, x), "at %d,%d", x, y)
		}
	}
}

func TestClipAndRectOf(t *testing.T) {
	assert.Equal(t, image.Rect(0, 2, 4, 6), clip(image.Rect(-3, 2, 9, 6), 4, 8))
	assert.True(t, clip(image.Rect(10, 10, 20, 20), 5, 5).Empty())
	assert.Equal(t, geometry.Rect{X: 2, Y: 3, Width: 4, Height: 5}, rectOf(image.Rect(2, 3, 6, 8)))
}

func TestMatchesAny(t *testing.T) {
	terms := []string{"stop", "exit"}
	assert.True(t, matchesAny("STOP", terms))
	assert.True(t, matchesAny(" Exit. ", terms))
	assert.True(t, matchesAny("nonstop", terms))
	assert.False(t, matchesAny("go", terms))
	assert.False(t, matchesAny("   ", terms))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.01, clampConfidence(-0.2))
	assert.Equal(t, 0.01, clampConfidence(0))
	assert.Equal(t, 0.42, clampConfidence(0.42))
	assert.Equal(t, 1.0, clampConfidence(1.3))
}

func TestForEngine(t *testing.T) {
	fallback := stubDetector{}
	d, closeFn, err := ForEngine("simulated", Options{}, fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, d)
	assert.NoError(t, closeFn())

	_, _, err = ForEngine("neural", Options{}, fallback)
	assert.ErrorContains(t, err, "neural")
}
