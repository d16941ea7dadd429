package vision

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// ErrEmptyImage is returned for an image without pixels.
var ErrEmptyImage = errors.New("empty image")

// ImageToMat converts an image to a BGR Mat. On error no native memory is
// held and the returned Mat need not be closed.
func ImageToMat(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return gocv.Mat{}, ErrEmptyImage
	}

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}
	return mat, nil
}

// grayMat converts an image to a single-channel Mat.
func grayMat(img image.Image) (gocv.Mat, error) {
	bgr, err := ImageToMat(img)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer bgr.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	return gray, nil
}

// clip intersects r with the image bounds of a rows x cols Mat.
func clip(r image.Rectangle, cols, rows int) image.Rectangle {
	return r.Intersect(image.Rect(0, 0, cols, rows))
}
