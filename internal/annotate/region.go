package annotate

import "image-annotator/pkg/geometry"

// DefaultMinRegionSize is the extent a reference region must exceed on both
// axes to be reported.
const DefaultMinRegionSize = 10.0

// RegionSelector is the rubber-band used to pick a reference region for the
// image prompt. It never produces labels.
type RegionSelector struct {
	minSize  float64
	dragging bool
	start    geometry.Point2D
	end      geometry.Point2D
}

// NewRegionSelector creates a selector. minSize <= 0 uses
// DefaultMinRegionSize.
func NewRegionSelector(minSize float64) *RegionSelector {
	if minSize <= 0 {
		minSize = DefaultMinRegionSize
	}
	return &RegionSelector{minSize: minSize}
}

// Press starts a zero-size box at p.
func (r *RegionSelector) Press(p geometry.Point2D) {
	r.dragging = true
	r.start, r.end = p, p
}

// Move resizes the box.
func (r *RegionSelector) Move(p geometry.Point2D) {
	if r.dragging {
		r.end = p
	}
}

// Release ends the drag and returns the normalized box when it is larger
// than the minimum on both axes.
func (r *RegionSelector) Release(p geometry.Point2D) (geometry.Rect, bool) {
	if !r.dragging {
		return geometry.Rect{}, false
	}
	r.end = p
	r.dragging = false
	box := geometry.RectFromCorners(r.start, r.end)
	if box.Width > r.minSize && box.Height > r.minSize {
		return box, true
	}
	return geometry.Rect{}, false
}

// Current returns the box being dragged.
func (r *RegionSelector) Current() (geometry.Rect, bool) {
	if !r.dragging {
		return geometry.Rect{}, false
	}
	return geometry.RectFromCorners(r.start, r.end), true
}

// Reset drops a drag in progress.
func (r *RegionSelector) Reset() {
	r.dragging = false
}
