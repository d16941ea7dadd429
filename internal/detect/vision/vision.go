// Package vision holds the classical detectors: Tesseract word matching for
// text prompts and OpenCV template matching for image prompts. It needs cgo
// with OpenCV and Tesseract installed.
package vision

import (
	"fmt"
	"log/slog"

	"image-annotator/internal/detect"
)

// Options configures New.
type Options struct {
	// Language is the Tesseract language, "eng" when empty.
	Language  string
	Threshold float64
	Logger    *slog.Logger
}

// Detector routes text prompts to OCR and image prompts to template
// matching. Free prompts go to the fallback detector.
type Detector struct {
	detect.ByMode
	text *TextDetector
}

// New builds a vision detector around fallback.
func New(opts Options, fallback detect.Detector) (*Detector, error) {
	lang := opts.Language
	if lang == "" {
		lang = "eng"
	}
	text, err := NewTextDetector(lang, opts.Logger)
	if err != nil {
		return nil, err
	}
	tmpl := &TemplateDetector{Threshold: opts.Threshold, Logger: opts.Logger}
	return &Detector{
		ByMode: detect.ByMode{
			Default: fallback,
			Modes: map[detect.PromptMode]detect.Detector{
				detect.ModeText:  text,
				detect.ModeImage: tmpl,
			},
		},
		text: text,
	}, nil
}

// Close releases the OCR client.
func (d *Detector) Close() error {
	return d.text.Close()
}

// ForEngine returns the detector for a configured engine name. The simulated
// engine returns fallback itself and a no-op close.
func ForEngine(engine string, opts Options, fallback detect.Detector) (detect.Detector, func() error, error) {
	switch engine {
	case "", "simulated":
		return fallback, func() error { return nil }, nil
	case "vision":
		d, err := New(opts, fallback)
		if err != nil {
			return nil, nil, fmt.Errorf("vision engine: %w", err)
		}
		return d, d.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown detection engine %q", engine)
	}
}
