package detect

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"image-annotator/internal/dataset"
	"image-annotator/internal/label"
	"image-annotator/internal/logging"
)

// OSDStore is the part of the dataset store an OSD run writes to.
type OSDStore interface {
	SetOSDStatus(dsID string, status dataset.OSDStatus) error
	Images(dsID string, filter dataset.Filter) ([]dataset.Image, error)
	AddLabel(dsID, imgID string, l label.Label) (label.Label, error)
	SetOSDFlag(dsID, imgID string, flag dataset.OSDFlag) error
}

// OSDOptions configures an open-set detection run.
type OSDOptions struct {
	// Delay is waited once before any image is processed.
	Delay time.Duration
	// Rate is the probability that an image is inspected and flagged.
	Rate    float64
	Workers int
	Seed    uint64
	Logger  *slog.Logger
}

// OSDResult summarizes a run.
type OSDResult struct {
	Images  int
	Flagged int
	// Skipped counts images whose size is not known yet; they are not
	// inspected.
	Skipped int
	Summary Summary
}

type osdFinding struct {
	imageID string
	labels  []label.Label
}

// RunOSD runs open-set detection over every image of a dataset. The dataset
// status is running for the duration and done afterwards. Images that
// receive suggestions are flagged unknown. Findings are written only once
// every image has been inspected, so a canceled or failed run leaves the
// images untouched and resets the status to idle.
func RunOSD(ctx context.Context, store OSDStore, dsID string, det Detector, opts OSDOptions) (OSDResult, error) {
	log := logging.OrNop(opts.Logger).With("component", "osd", "dataset", dsID)
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0xA5A5A5A5))

	if err := store.SetOSDStatus(dsID, dataset.StatusRunning); err != nil {
		return OSDResult{}, err
	}
	fail := func(err error) (OSDResult, error) {
		_ = store.SetOSDStatus(dsID, dataset.StatusIdle)
		log.Warn("osd run aborted", "error", err)
		return OSDResult{}, err
	}

	if err := sleep(ctx, opts.Delay); err != nil {
		return fail(err)
	}
	images, err := store.Images(dsID, dataset.FilterAll)
	if err != nil {
		return fail(err)
	}

	var (
		mu       sync.Mutex
		findings []osdFinding
		res      = OSDResult{Images: len(images)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, img := range images {
		if img.Width <= 0 || img.Height <= 0 {
			res.Skipped++
			continue
		}
		if rng.Float64() >= opts.Rate {
			continue
		}
		g.Go(func() error {
			labels, err := det.Detect(gctx, Request{Mode: ModeFree, Width: img.Width, Height: img.Height})
			if err != nil {
				return fmt.Errorf("image %s: %w", img.ID, err)
			}
			if len(labels) == 0 {
				return nil
			}
			mu.Lock()
			findings = append(findings, osdFinding{imageID: img.ID, labels: labels})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	var added []label.Label
	for _, f := range findings {
		for _, l := range f.labels {
			stored, err := store.AddLabel(dsID, f.imageID, l)
			if err != nil {
				return fail(err)
			}
			added = append(added, stored)
		}
		if err := store.SetOSDFlag(dsID, f.imageID, dataset.FlagUnknown); err != nil {
			return fail(err)
		}
		res.Flagged++
	}

	if err := store.SetOSDStatus(dsID, dataset.StatusDone); err != nil {
		return res, err
	}
	res.Summary = Summarize(added)
	log.Info("osd run finished", "images", res.Images, "flagged", res.Flagged, "skipped", res.Skipped, "suggestions", res.Summary.Count)
	return res, nil
}
