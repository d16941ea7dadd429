// Package annotate is the interactive core of the annotation canvas: the
// viewport transform, the shape builder, hit-testing, the region selector and
// the Controller tying them to pointer input. It has no UI dependency.
package annotate

import (
	"fmt"
	"math"

	"image-annotator/pkg/geometry"
)

// Viewport defaults.
const (
	DefaultMinScale  = 0.1
	DefaultMaxScale  = 10.0
	DefaultZoomStep  = 1.2
	DefaultFitMargin = 0.9
)

// ViewportOptions configures zoom limits and fitting.
type ViewportOptions struct {
	MinScale  float64
	MaxScale  float64
	ZoomStep  float64
	FitMargin float64
}

// DefaultViewportOptions returns the standard limits.
func DefaultViewportOptions() ViewportOptions {
	return ViewportOptions{
		MinScale:  DefaultMinScale,
		MaxScale:  DefaultMaxScale,
		ZoomStep:  DefaultZoomStep,
		FitMargin: DefaultFitMargin,
	}
}

func (o ViewportOptions) withDefaults() ViewportOptions {
	d := DefaultViewportOptions()
	if o.MinScale <= 0 {
		o.MinScale = d.MinScale
	}
	if o.MaxScale < o.MinScale {
		o.MaxScale = math.Max(d.MaxScale, o.MinScale)
	}
	if o.ZoomStep <= 1 {
		o.ZoomStep = d.ZoomStep
	}
	if o.FitMargin <= 0 || o.FitMargin > 1 {
		o.FitMargin = d.FitMargin
	}
	return o
}

// Viewport maps between screen space and image space:
//
//	image  = (screen - position) / scale
//	screen = image * scale + position
//
// The zero value is not usable; call NewViewport.
type Viewport struct {
	opts     ViewportOptions
	scale    float64
	position geometry.Point2D
	view     geometry.Size
	image    geometry.Size
	ready    bool
}

// NewViewport creates a viewport with scale 1 and no image.
func NewViewport(opts ViewportOptions) *Viewport {
	return &Viewport{opts: opts.withDefaults(), scale: 1}
}

// Scale returns the image-to-screen multiplier.
func (v *Viewport) Scale() float64 { return v.scale }

// Position returns the screen-space offset of the image origin.
func (v *Viewport) Position() geometry.Point2D { return v.position }

// ImageSize returns the size of the loaded image.
func (v *Viewport) ImageSize() geometry.Size { return v.image }

// ViewSize returns the size of the screen area.
func (v *Viewport) ViewSize() geometry.Size { return v.view }

// Ready reports whether an image is loaded and drawing is allowed.
func (v *Viewport) Ready() bool { return v.ready }

// ToImage converts a screen point to image space.
func (v *Viewport) ToImage(p geometry.Point2D) geometry.Point2D {
	return p.Sub(v.position).Scale(1 / v.scale)
}

// ToScreen converts an image point to screen space.
func (v *Viewport) ToScreen(p geometry.Point2D) geometry.Point2D {
	return p.Scale(v.scale).Add(v.position)
}

// SetViewSize records the size of the screen area.
func (v *Viewport) SetViewSize(width, height float64) {
	v.view = geometry.Size{Width: width, Height: height}
}

// Load records the image size, marks the viewport ready and fits the image.
func (v *Viewport) Load(width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid image size %vx%v", width, height)
	}
	v.image = geometry.Size{Width: width, Height: height}
	v.ready = true
	v.Fit()
	return nil
}

// Fail marks the viewport not ready after an image load error.
func (v *Viewport) Fail() {
	v.ready = false
	v.image = geometry.Size{}
	v.scale = 1
	v.position = geometry.Point2D{}
}

// Fit scales the image to the view with a margin and centers it.
func (v *Viewport) Fit() {
	if !v.ready || v.view.Width <= 0 || v.view.Height <= 0 {
		return
	}
	s := math.Min(v.view.Width/v.image.Width, v.view.Height/v.image.Height) * v.opts.FitMargin
	v.scale = v.clamp(s)
	v.position = geometry.Point2D{
		X: (v.view.Width - v.image.Width*v.scale) / 2,
		Y: (v.view.Height - v.image.Height*v.scale) / 2,
	}
}

// ZoomIn zooms one step about the view center.
func (v *Viewport) ZoomIn() {
	v.zoomAbout(v.center(), v.scale*v.opts.ZoomStep)
}

// ZoomOut zooms one step out about the view center.
func (v *Viewport) ZoomOut() {
	v.zoomAbout(v.center(), v.scale/v.opts.ZoomStep)
}

// ZoomAt zooms one step in or out keeping the image point under the screen
// point p fixed.
func (v *Viewport) ZoomAt(p geometry.Point2D, in bool) {
	s := v.scale / v.opts.ZoomStep
	if in {
		s = v.scale * v.opts.ZoomStep
	}
	v.zoomAbout(p, s)
}

// SetScale sets the scale directly, keeping the view center fixed.
func (v *Viewport) SetScale(s float64) {
	v.zoomAbout(v.center(), s)
}

// Pan shifts the image by a screen-space delta.
func (v *Viewport) Pan(dx, dy float64) {
	v.position = v.position.Add(geometry.Pt(dx, dy))
}

func (v *Viewport) zoomAbout(anchor geometry.Point2D, s float64) {
	fixed := v.ToImage(anchor)
	v.scale = v.clamp(s)
	v.position = anchor.Sub(fixed.Scale(v.scale))
}

func (v *Viewport) center() geometry.Point2D {
	return geometry.Pt(v.view.Width/2, v.view.Height/2)
}

func (v *Viewport) clamp(s float64) float64 {
	return math.Max(v.opts.MinScale, math.Min(v.opts.MaxScale, s))
}
