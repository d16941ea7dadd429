package detect

import (
	"context"

	"golang.org/x/sync/errgroup"

	"image-annotator/internal/label"
)

// Multi runs several detectors concurrently and concatenates their results
// in detector order. The first error cancels the others.
type Multi []Detector

// Detect implements Detector.
func (m Multi) Detect(ctx context.Context, req Request) ([]label.Label, error) {
	results := make([][]label.Label, len(m))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range m {
		g.Go(func() error {
			labels, err := d.Detect(gctx, req)
			results[i] = labels
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []label.Label
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// ByMode dispatches to a detector per prompt mode, falling back to Default.
type ByMode struct {
	Default Detector
	Modes   map[PromptMode]Detector
}

// Detect implements Detector.
func (b ByMode) Detect(ctx context.Context, req Request) ([]label.Label, error) {
	if d, ok := b.Modes[req.Mode]; ok && d != nil {
		return d.Detect(ctx, req)
	}
	return b.Default.Detect(ctx, req)
}
