// Package render rasterizes the annotation canvas: the image under the
// current viewport, the labels over it, and the shape or region in progress.
package render

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"image-annotator/internal/annotate"
	"image-annotator/internal/label"
	"image-annotator/pkg/colorutil"
	"image-annotator/pkg/geometry"
)

// Options controls label styling.
type Options struct {
	Colors *colorutil.Assigner
	// PointRadius is the screen radius of point labels.
	PointRadius float64
	// FillOpacity is the opacity of rect and polygon interiors.
	FillOpacity float64
	LineWidth   int
	Captions    bool
	Background  color.RGBA
}

// DefaultOptions returns the standard canvas styling.
func DefaultOptions() Options {
	return Options{
		Colors:      colorutil.NewAssigner(colorutil.StrategyHash, nil),
		PointRadius: 5,
		FillOpacity: 0.2,
		LineWidth:   2,
		Captions:    true,
		Background:  colorutil.Canvas,
	}
}

// Renderer draws controller snapshots.
type Renderer struct {
	opts Options
}

// New creates a renderer; zero fields of opts take their defaults.
func New(opts Options) *Renderer {
	def := DefaultOptions()
	if opts.Colors == nil {
		opts.Colors = def.Colors
	}
	if opts.PointRadius <= 0 {
		opts.PointRadius = def.PointRadius
	}
	if opts.LineWidth <= 0 {
		opts.LineWidth = def.LineWidth
	}
	if opts.Background == (color.RGBA{}) {
		opts.Background = def.Background
	}
	return &Renderer{opts: opts}
}

// transform maps image coordinates to output pixels.
type transform struct {
	scale  float64
	offset geometry.Point2D
}

func (t transform) pt(p geometry.Point2D) geometry.Point2D {
	return p.Scale(t.scale).Add(t.offset)
}

func (t transform) pts(ps []geometry.Point2D) []geometry.Point2D {
	out := make([]geometry.Point2D, len(ps))
	for i, p := range ps {
		out[i] = t.pt(p)
	}
	return out
}

func (t transform) rect(r geometry.Rect) geometry.Rect {
	return geometry.RectFromCorners(t.pt(r.Min()), t.pt(r.Max()))
}

// Image allocates an output of w x h pixels and renders into it.
func (r *Renderer) Image(w, h int, img image.Image, v annotate.View, pixelScale float64) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	r.Render(dst, img, v, pixelScale)
	return dst
}

// Render draws v into dst. pixelScale converts view units to output pixels
// for high-density displays; zero means one.
func (r *Renderer) Render(dst *image.RGBA, img image.Image, v annotate.View, pixelScale float64) {
	if pixelScale <= 0 {
		pixelScale = 1
	}
	s := surface{dst: dst}
	draw.Draw(dst, dst.Rect, &image.Uniform{C: r.opts.Background}, image.Point{}, draw.Src)
	if !v.Ready {
		return
	}
	t := transform{scale: v.Scale * pixelScale, offset: v.Position.Scale(pixelScale)}

	if img != nil {
		r.drawImage(dst, img, t)
	}
	for _, l := range v.Labels {
		opacity := 1.0
		if v.Highlighted != "" && l.ID != v.Highlighted {
			opacity = v.DimOpacity
		}
		r.drawLabel(s, t, l, l.ID == v.Selected && l.ID != "", opacity, pixelScale)
	}
	if v.Pending != nil {
		r.drawShape(s, t, v.Pending, colorutil.Yellow, 1, 4, pixelScale)
	}
	r.drawDraft(s, t, v, pixelScale)
	if v.Region != nil {
		box := t.rect(*v.Region)
		s.fillRect(box.ImageRect(), colorutil.WithAlpha(colorutil.Selection, 0.15))
		s.outlineRect(box, colorutil.Selection, r.opts.LineWidth, 4)
	}
}

func (r *Renderer) drawImage(dst *image.RGBA, img image.Image, t transform) {
	b := img.Bounds()
	aff := f64.Aff3{
		t.scale, 0, t.offset.X - float64(b.Min.X)*t.scale,
		0, t.scale, t.offset.Y - float64(b.Min.Y)*t.scale,
	}
	var interp draw.Transformer = draw.ApproxBiLinear
	if t.scale >= 2 {
		interp = draw.NearestNeighbor
	}
	interp.Transform(dst, aff, img, b, draw.Over, nil)
}

func (r *Renderer) drawLabel(s surface, t transform, l label.Label, selected bool, opacity, pixelScale float64) {
	if l.Shape == nil {
		return
	}
	col := r.opts.Colors.LabelColor(l.Category, l.IsAISuggestion)
	dash := 0
	if l.IsAISuggestion {
		dash = 5
	}
	width := r.opts.LineWidth
	if selected {
		width++
	}
	r.drawFill(s, t, l.Shape, colorutil.WithAlpha(col, r.opts.FillOpacity*opacity))
	r.drawShape(s, t, l.Shape, colorutil.WithAlpha(col, opacity), width, dash, pixelScale)

	box := t.rect(l.Shape.Bounds())
	if selected {
		for _, c := range []geometry.Point2D{box.Min(), {X: box.Max().X, Y: box.Min().Y}, box.Max(), {X: box.Min().X, Y: box.Max().Y}} {
			s.fillRect(image.Rect(round(c.X)-3, round(c.Y)-3, round(c.X)+4, round(c.Y)+4), colorutil.White)
			s.outlineRect(geometry.Rect{X: c.X - 3, Y: c.Y - 3, Width: 6, Height: 6}, col, 1, 0)
		}
	}
	if r.opts.Captions && l.Category != "" {
		_, h := textSize(l.Caption())
		y := round(box.Y) - h - 3
		if y < 0 {
			y = round(box.Y + box.Height + 2)
		}
		s.caption(round(box.X), y, l.Caption(), colorutil.WithAlpha(col, opacity), colorutil.WithAlpha(colorutil.White, opacity))
	}
}

func (r *Renderer) drawFill(s surface, t transform, shape label.Shape, col color.RGBA) {
	switch sh := shape.(type) {
	case label.Rect:
		s.fillRect(t.rect(sh.Bounds()).ImageRect(), col)
	case label.Polygon:
		s.fillPolygon(t.pts(sh.Vertices), col)
	}
}

func (r *Renderer) drawShape(s surface, t transform, shape label.Shape, col color.RGBA, width, dash int, pixelScale float64) {
	switch sh := shape.(type) {
	case label.Rect:
		s.outlineRect(t.rect(sh.Bounds()), col, width, dash)
	case label.Polygon:
		s.path(t.pts(sh.Vertices), true, col, width, dash)
	case label.Point:
		radius := r.opts.PointRadius * pixelScale
		s.disc(t.pt(sh.At), radius, col)
		s.ring(t.pt(sh.At), radius+1, 1.5, colorutil.WithAlpha(colorutil.White, float64(col.A)/255))
	}
}

func (r *Renderer) drawDraft(s surface, t transform, v annotate.View, pixelScale float64) {
	if len(v.Draft) == 0 {
		return
	}
	col := colorutil.Selection
	switch v.DraftTool {
	case annotate.ToolRect:
		if len(v.Draft) == 2 {
			box := t.rect(geometry.RectFromCorners(v.Draft[0], v.Draft[1]))
			s.fillRect(box.ImageRect(), colorutil.WithAlpha(col, 0.1))
			s.outlineRect(box, col, r.opts.LineWidth, 4)
		}
	case annotate.ToolPolygon:
		pts := t.pts(v.Draft)
		s.path(pts, false, col, r.opts.LineWidth, 0)
		if v.DraftCursor != nil {
			last := pts[len(pts)-1]
			c := t.pt(*v.DraftCursor)
			s.line(round(last.X), round(last.Y), round(c.X), round(c.Y), col, 1, 4)
		}
		for _, p := range pts {
			s.disc(p, 3*pixelScale, col)
		}
	}
}
