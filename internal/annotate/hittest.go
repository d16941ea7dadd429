package annotate

import (
	"image-annotator/internal/label"
	"image-annotator/pkg/geometry"
)

// DefaultPointHitRadius is the radius of the disc around a point label that
// counts as a hit.
const DefaultPointHitRadius = 10.0

// Contains reports whether the image-space point p hits shape s.
func Contains(s label.Shape, p geometry.Point2D, pointRadius float64) bool {
	switch v := s.(type) {
	case label.Rect:
		return v.Bounds().Contains(p)
	case label.Polygon:
		return geometry.PointInPolygon(p, v.Vertices)
	case label.Point:
		return v.At.Distance(p) <= pointRadius
	default:
		return false
	}
}

// HitTest returns the top-most label containing p. Later labels are drawn
// above earlier ones, so the list is scanned from the end.
func HitTest(labels []label.Label, p geometry.Point2D, pointRadius float64) (label.Label, bool) {
	for i := len(labels) - 1; i >= 0; i-- {
		if labels[i].Shape != nil && Contains(labels[i].Shape, p, pointRadius) {
			return labels[i], true
		}
	}
	return label.Label{}, false
}
