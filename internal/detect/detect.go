// Package detect produces AI suggestions: simulated open-set detection for a
// whole dataset and prompt-driven detection for one image.
package detect

import (
	"context"
	"errors"
	"fmt"
	"image"

	"gonum.org/v1/gonum/stat"

	"image-annotator/internal/label"
	"image-annotator/pkg/geometry"
)

// PromptMode selects how detection is guided.
type PromptMode string

const (
	ModeFree  PromptMode = "free"
	ModeText  PromptMode = "text"
	ModeImage PromptMode = "image"
)

// ParseMode parses a prompt mode name.
func ParseMode(s string) (PromptMode, error) {
	switch m := PromptMode(s); m {
	case ModeFree, ModeText, ModeImage:
		return m, nil
	case "":
		return ModeFree, nil
	}
	return ModeFree, fmt.Errorf("unknown prompt mode %q", s)
}

var (
	// ErrMissingPrompt is returned for text mode without text.
	ErrMissingPrompt = errors.New("text prompt is empty")
	// ErrMissingReference is returned for image mode without a region.
	ErrMissingReference = errors.New("no reference region selected")
	// ErrNoImage is returned when a detector needs pixels and got none.
	ErrNoImage = errors.New("image pixels required")
)

// Request describes one detection run on one image.
type Request struct {
	Mode PromptMode
	Text string
	// Reference is the image-space region picked for image mode.
	Reference *geometry.Rect
	// Image holds the decoded pixels; simulated detection only needs the size.
	Image  image.Image
	Width  int
	Height int
}

// Size returns the image size, taken from the pixels when present.
func (r Request) Size() (int, int) {
	if r.Image != nil {
		b := r.Image.Bounds()
		return b.Dx(), b.Dy()
	}
	return r.Width, r.Height
}

// Validate checks that the prompt matches the mode.
func (r Request) Validate() error {
	if w, h := r.Size(); w <= 0 || h <= 0 {
		return fmt.Errorf("invalid image size %dx%d", w, h)
	}
	switch r.Mode {
	case ModeText:
		if r.Text == "" {
			return ErrMissingPrompt
		}
	case ModeImage:
		if r.Reference == nil || r.Reference.Empty() {
			return ErrMissingReference
		}
	case ModeFree:
	default:
		return fmt.Errorf("unknown prompt mode %q", r.Mode)
	}
	return nil
}

// Detector proposes labels for an image. Every returned label is an AI
// suggestion without an id.
type Detector interface {
	Detect(ctx context.Context, req Request) ([]label.Label, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, req Request) ([]label.Label, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, req Request) ([]label.Label, error) {
	return f(ctx, req)
}

// Summary describes the confidence of a batch of suggestions.
type Summary struct {
	Count          int
	MeanConfidence float64
	StdDev         float64
}

// Summarize computes count, mean and standard deviation of confidences.
func Summarize(labels []label.Label) Summary {
	s := Summary{Count: len(labels)}
	if len(labels) == 0 {
		return s
	}
	conf := make([]float64, len(labels))
	for i, l := range labels {
		conf[i] = l.Confidence
	}
	if len(conf) == 1 {
		s.MeanConfidence = conf[0]
		return s
	}
	s.MeanConfidence, s.StdDev = stat.MeanStdDev(conf, nil)
	return s
}

// String renders the summary for status messages.
func (s Summary) String() string {
	if s.Count == 0 {
		return "no suggestions"
	}
	return fmt.Sprintf("%d suggestions, mean confidence %.0f%%", s.Count, s.MeanConfidence*100)
}

func suggestion(box geometry.Rect, confidence float64) label.Label {
	return label.Label{
		Category:       label.CategoryUnknown,
		Shape:          label.NewRect(box.Min(), box.Max()),
		IsAISuggestion: true,
		Confidence:     confidence,
	}
}

// Suggestion builds an unknown-category AI rect label for box.
func Suggestion(box geometry.Rect, confidence float64) label.Label {
	return suggestion(box, confidence)
}
