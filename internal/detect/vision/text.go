package vision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"

	"image-annotator/internal/detect"
	"image-annotator/internal/label"
	"image-annotator/internal/logging"
)

// TextDetector finds words matching the text prompt with Tesseract.
type TextDetector struct {
	mu     sync.Mutex
	client *gosseract.Client
	log    *slog.Logger
}

// NewTextDetector creates a Tesseract client for language (for example "eng").
func NewTextDetector(language string, logger *slog.Logger) (*TextDetector, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}
	return &TextDetector{client: client, log: logging.OrNop(logger)}, nil
}

// Close releases the Tesseract client.
func (t *TextDetector) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

// Detect implements detect.Detector for text prompts. Words containing any
// term of the prompt, case-insensitively, become suggestions.
func (t *TextDetector) Detect(ctx context.Context, req detect.Request) ([]label.Label, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Image == nil {
		return nil, detect.ErrNoImage
	}
	terms := strings.Fields(strings.ToLower(req.Text))
	if len(terms) == 0 {
		return nil, detect.ErrMissingPrompt
	}

	mat, err := ImageToMat(req.Image)
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	buf, err := gocv.IMEncode(gocv.PNGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil, fmt.Errorf("text detector closed")
	}
	if err := t.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get boxes: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []label.Label
	for _, box := range boxes {
		if !matchesAny(box.Word, terms) {
			continue
		}
		out = append(out, detect.Suggestion(rectOf(box.Box), clampConfidence(box.Confidence/100)))
	}
	t.log.Debug("text search", "terms", terms, "words", len(boxes), "matches", len(out))
	return out, nil
}

func matchesAny(word string, terms []string) bool {
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" {
		return false
	}
	for _, term := range terms {
		if strings.Contains(w, term) {
			return true
		}
	}
	return false
}

func clampConfidence(c float64) float64 {
	switch {
	case c <= 0:
		return 0.01
	case c > 1:
		return 1
	}
	return c
}
