package render

import (
	"image"
	"image/color"
	"sort"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"image-annotator/pkg/geometry"
)

// surface draws alpha-blended primitives onto an RGBA image. Colors are
// straight (non-premultiplied) with A as opacity.
type surface struct {
	dst *image.RGBA
}

func (s surface) blend(x, y int, c color.RGBA) {
	if !(image.Point{X: x, Y: y}).In(s.dst.Rect) || c.A == 0 {
		return
	}
	if c.A == 255 {
		s.dst.SetRGBA(x, y, c)
		return
	}
	i := s.dst.PixOffset(x, y)
	p := s.dst.Pix[i : i+4 : i+4]
	a := uint32(c.A)
	p[0] = uint8((uint32(c.R)*a + uint32(p[0])*(255-a)) / 255)
	p[1] = uint8((uint32(c.G)*a + uint32(p[1])*(255-a)) / 255)
	p[2] = uint8((uint32(c.B)*a + uint32(p[2])*(255-a)) / 255)
	p[3] = 255
}

func (s surface) fillRect(r image.Rectangle, c color.RGBA) {
	r = r.Intersect(s.dst.Rect)
	if r.Empty() || c.A == 0 {
		return
	}
	src := &image.Uniform{C: color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}}
	mask := &image.Uniform{C: color.Alpha{A: c.A}}
	xdraw.DrawMask(s.dst, r, src, image.Point{}, mask, image.Point{}, xdraw.Over)
}

// line draws a Bresenham line. With dash > 0 the stroke alternates dash
// pixels on and dash pixels off.
func (s surface) line(x1, y1, x2, y2 int, c color.RGBA, thickness, dash int) {
	dx, dy := abs(x2-x1), abs(y2-y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	half := thickness / 2

	for step := 0; ; step++ {
		if dash <= 0 || (step/dash)%2 == 0 {
			for t := -half; t <= thickness-1-half; t++ {
				for u := -half; u <= thickness-1-half; u++ {
					s.blend(x1+u, y1+t, c)
				}
			}
		}
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func (s surface) path(pts []geometry.Point2D, closed bool, c color.RGBA, thickness, dash int) {
	n := len(pts)
	if n < 2 {
		return
	}
	last := n - 1
	if closed {
		last = n
	}
	for i := 0; i < last; i++ {
		a, b := pts[i], pts[(i+1)%n]
		s.line(round(a.X), round(a.Y), round(b.X), round(b.Y), c, thickness, dash)
	}
}

func (s surface) outlineRect(r geometry.Rect, c color.RGBA, thickness, dash int) {
	lo, hi := r.Min(), r.Max()
	s.path([]geometry.Point2D{lo, {X: hi.X, Y: lo.Y}, hi, {X: lo.X, Y: hi.Y}}, true, c, thickness, dash)
}

// fillPolygon fills with the even-odd rule by scanlines through pixel
// centers.
func (s surface) fillPolygon(pts []geometry.Point2D, c color.RGBA) {
	if len(pts) < 3 {
		return
	}
	b := geometry.BoundingBox(pts).ImageRect().Intersect(s.dst.Rect)
	var xs []float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		fy := float64(y) + 0.5
		xs = xs[:0]
		n := len(pts)
		for i := 0; i < n; i++ {
			p1, p2 := pts[i], pts[(i+1)%n]
			if (p1.Y <= fy && p2.Y > fy) || (p2.Y <= fy && p1.Y > fy) {
				t := (fy - p1.Y) / (p2.Y - p1.Y)
				xs = append(xs, p1.X+t*(p2.X-p1.X))
			}
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			s.fillRect(image.Rect(round(xs[i]), y, round(xs[i+1]), y+1), c)
		}
	}
}

func (s surface) disc(center geometry.Point2D, r float64, c color.RGBA) {
	s.ring(center, r, r+1, c)
}

// ring fills the pixels whose centers lie within width of the circle edge,
// inside it. A width larger than r fills the disc.
func (s surface) ring(center geometry.Point2D, r, width float64, c color.RGBA) {
	inner := max(r-width, 0)
	b := image.Rect(int(center.X-r)-1, int(center.Y-r)-1, int(center.X+r)+2, int(center.Y+r)+2).Intersect(s.dst.Rect)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			d := geometry.Pt(float64(x)+0.5, float64(y)+0.5).Distance(center)
			if d <= r && d >= inner {
				s.blend(x, y, c)
			}
		}
	}
}

var face = basicfont.Face7x13

// textSize returns the advance width and line height of str.
func textSize(str string) (int, int) {
	d := font.Drawer{Face: face}
	return d.MeasureString(str).Ceil(), face.Metrics().Height.Ceil()
}

// caption draws str on a filled tag whose top-left corner is at (x, y).
func (s surface) caption(x, y int, str string, bg, fg color.RGBA) {
	w, h := textSize(str)
	const pad = 2
	s.fillRect(image.Rect(x, y, x+w+2*pad, y+h+pad), bg)
	d := font.Drawer{
		Dst:  s.dst,
		Src:  &image.Uniform{C: color.NRGBA{R: fg.R, G: fg.G, B: fg.B, A: fg.A}},
		Face: face,
		Dot:  fixed.P(x+pad, y+face.Metrics().Ascent.Ceil()+1),
	}
	d.DrawString(str)
}

func round(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
