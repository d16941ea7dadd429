package vision

import (
	"context"
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"image-annotator/internal/detect"
	"image-annotator/internal/label"
	"image-annotator/internal/logging"
	"image-annotator/pkg/geometry"
)

// TemplateDetector finds regions that look like the reference region using
// normalized cross-correlation.
type TemplateDetector struct {
	// Threshold is the minimum correlation score in [0, 1].
	Threshold float64
	// MaxMatches bounds the number of suggestions.
	MaxMatches int
	Logger     *slog.Logger
}

// Detect implements detect.Detector for image prompts.
func (t *TemplateDetector) Detect(ctx context.Context, req detect.Request) ([]label.Label, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Image == nil {
		return nil, detect.ErrNoImage
	}
	if req.Reference == nil {
		return nil, detect.ErrMissingReference
	}
	log := logging.OrNop(t.Logger)

	gray, err := grayMat(req.Image)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	ref := clip(req.Reference.ImageRect(), gray.Cols(), gray.Rows())
	if ref.Dx() < 2 || ref.Dy() < 2 {
		return nil, detect.ErrMissingReference
	}
	templ := gray.Region(ref)
	defer templ.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(gray, templ, &result, gocv.TmCcoeffNormed, mask)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	maxMatches := t.MaxMatches
	if maxMatches <= 0 {
		maxMatches = 10
	}
	threshold := t.Threshold
	if threshold <= 0 {
		threshold = 0.8
	}
	var out []label.Label
	// Each peak is suppressed after it is taken, so the loop visits peaks in
	// descending score order. The reference itself is always the best peak.
	for len(out) < maxMatches {
		_, score, _, loc := gocv.MinMaxLoc(result)
		if float64(score) < threshold {
			break
		}
		box := image.Rectangle{Min: loc, Max: loc.Add(ref.Size())}
		suppress(result, loc, ref.Dx(), ref.Dy())
		if overlap(box, ref) > 0.5 {
			continue
		}
		out = append(out, detect.Suggestion(rectOf(box), float64(score)))
	}
	log.Debug("template match", "reference", ref, "matches", len(out))
	return out, nil
}

// suppress zeroes the scores of every placement overlapping a match at loc.
func suppress(result gocv.Mat, loc image.Point, w, h int) {
	area := clip(image.Rect(loc.X-w/2, loc.Y-h/2, loc.X+w/2+1, loc.Y+h/2+1), result.Cols(), result.Rows())
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			result.SetFloatAt(y, x, -1)
		}
	}
}

// overlap is the intersection over union of two rectangles.
func overlap(a, b image.Rectangle) float64 {
	in := a.Intersect(b)
	if in.Empty() {
		return 0
	}
	i := float64(in.Dx() * in.Dy())
	u := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - i
	return i / u
}

func rectOf(r image.Rectangle) geometry.Rect {
	return geometry.Rect{X: float64(r.Min.X), Y: float64(r.Min.Y), Width: float64(r.Dx()), Height: float64(r.Dy())}
}
