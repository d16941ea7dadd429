package imagesource

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"image-annotator/pkg/geometry"
)

// ErrEmptyRegion is returned when a crop does not overlap the image.
var ErrEmptyRegion = errors.New("region outside image")

// Crop cuts an image-space region out of img.
func Crop(img image.Image, region geometry.Rect) (*image.NRGBA, error) {
	r := region.ImageRect().Intersect(img.Bounds())
	if r.Empty() {
		return nil, ErrEmptyRegion
	}
	return imaging.Crop(img, r), nil
}

// Thumbnail scales img to fit within w x h, keeping the aspect ratio.
func Thumbnail(img image.Image, w, h int) *image.NRGBA {
	return imaging.Fit(img, w, h, imaging.Lanczos)
}

// EncodeDataURL encodes img as a PNG data URL.
func EncodeDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ReferenceDataURL crops region and returns it as a PNG data URL, the form
// in which an image prompt is handed to detection.
func ReferenceDataURL(img image.Image, region geometry.Rect) (string, error) {
	crop, err := Crop(img, region)
	if err != nil {
		return "", err
	}
	return EncodeDataURL(crop)
}
