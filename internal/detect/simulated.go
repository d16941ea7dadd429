package detect

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"image-annotator/internal/label"
	"image-annotator/pkg/geometry"
)

// SimulatedOptions configures the simulated detector.
type SimulatedOptions struct {
	Delay          time.Duration
	MinConfidence  float64
	MaxConfidence  float64
	MaxSuggestions int
	Seed           uint64
}

// Simulated stands in for a detection service: after a fixed delay it
// returns random boxes inside the image. Safe for concurrent use.
type Simulated struct {
	opts SimulatedOptions

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a simulated detector.
func NewSimulated(opts SimulatedOptions) *Simulated {
	if opts.MaxConfidence <= 0 || opts.MaxConfidence > 1 {
		opts.MaxConfidence = 0.8
	}
	if opts.MinConfidence < 0 || opts.MinConfidence > opts.MaxConfidence {
		opts.MinConfidence = math.Min(0.3, opts.MaxConfidence)
	}
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = 1
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Simulated{opts: opts, rng: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

// Detect waits for the configured delay, then returns between one and
// MaxSuggestions suggestions. In image mode the boxes take the size of the
// reference region.
func (s *Simulated) Detect(ctx context.Context, req Request) ([]label.Label, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := sleep(ctx, s.opts.Delay); err != nil {
		return nil, err
	}

	w, h := req.Size()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 1 + s.rng.IntN(s.opts.MaxSuggestions)
	out := make([]label.Label, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, suggestion(s.box(float64(w), float64(h), req.Reference), s.confidence()))
	}
	return out, nil
}

func (s *Simulated) confidence() float64 {
	return s.opts.MinConfidence + s.rng.Float64()*(s.opts.MaxConfidence-s.opts.MinConfidence)
}

func (s *Simulated) box(w, h float64, ref *geometry.Rect) geometry.Rect {
	bw, bh := w*(0.1+0.3*s.rng.Float64()), h*(0.1+0.3*s.rng.Float64())
	if ref != nil {
		bw, bh = math.Min(ref.Width, w), math.Min(ref.Height, h)
	}
	x := s.rng.Float64() * (w - bw)
	y := s.rng.Float64() * (h - bh)
	return geometry.Rect{X: x, Y: y, Width: bw, Height: bh}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
