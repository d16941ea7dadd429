package app

import (
	"context"
	"fmt"

	"image-annotator/internal/dataset"
	"image-annotator/internal/detect"
	"image-annotator/internal/export"
	"image-annotator/internal/imagesource"
	"image-annotator/pkg/geometry"
)

// Prompt returns the detection prompt.
func (s *State) Prompt() Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompt
}

// SetPromptMode switches the prompt mode.
func (s *State) SetPromptMode(mode detect.PromptMode) {
	s.mu.Lock()
	s.prompt.Mode = mode
	p := s.prompt
	s.mu.Unlock()
	s.Emit(EventPromptChanged, p)
}

// SetPromptText sets the text prompt.
func (s *State) SetPromptText(text string) {
	s.mu.Lock()
	s.prompt.Text = text
	p := s.prompt
	s.mu.Unlock()
	s.Emit(EventPromptChanged, p)
}

// SetReference records the region picked in selection-region mode as the
// image prompt and switches to image mode.
func (s *State) SetReference(region geometry.Rect) {
	s.mu.Lock()
	r := region
	s.prompt.Mode = detect.ModeImage
	s.prompt.Reference = &r
	s.prompt.ReferenceURL = ""
	if s.pixels != nil {
		if u, err := imagesource.ReferenceDataURL(s.pixels, region); err == nil {
			s.prompt.ReferenceURL = u
		} else {
			s.log.Debug("reference crop failed", "error", err)
		}
	}
	p := s.prompt
	s.mu.Unlock()
	s.Emit(EventPromptChanged, p)
}

// ClearReference drops the image prompt region.
func (s *State) ClearReference() {
	s.mu.Lock()
	s.prompt.Reference = nil
	s.prompt.ReferenceURL = ""
	p := s.prompt
	s.mu.Unlock()
	s.Emit(EventPromptChanged, p)
}

// Detecting reports whether a detection run is active.
func (s *State) Detecting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detecting
}

// RunDetection runs the detector on the current image with the current
// prompt and stores the results as AI suggestions.
func (s *State) RunDetection(ctx context.Context) (detect.Summary, error) {
	ds, id, err := s.currentImage()
	if err != nil {
		return detect.Summary{}, s.fail("run detection", err)
	}
	img, err := s.store.Image(ds, id)
	if err != nil {
		return detect.Summary{}, s.fail("run detection", err)
	}

	s.mu.Lock()
	if s.detecting {
		s.mu.Unlock()
		return detect.Summary{}, s.fail("run detection", ErrBusy)
	}
	s.detecting = true
	prompt, pixels := s.prompt, s.pixels
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.detecting = false
		s.mu.Unlock()
	}()

	req := detect.Request{
		Mode:      prompt.Mode,
		Text:      prompt.Text,
		Reference: prompt.Reference,
		Image:     pixels,
		Width:     img.Width,
		Height:    img.Height,
	}
	if err := req.Validate(); err != nil {
		return detect.Summary{}, s.fail("run detection", err)
	}

	s.Emit(EventDetectionStarted, prompt.Mode)
	s.log.Info("detection started", "image", id, "mode", prompt.Mode)
	labels, err := s.opts.Detector.Detect(ctx, req)
	if err != nil {
		return detect.Summary{}, s.fail("run detection", err)
	}

	added := labels[:0:0]
	for _, l := range labels {
		stored, err := s.store.AddLabel(ds, id, l)
		if err != nil {
			return detect.Summary{}, s.fail("run detection", err)
		}
		added = append(added, stored)
	}
	sum := detect.Summarize(added)
	s.log.Info("detection finished", "image", id, "suggestions", sum.Count, "mean_confidence", sum.MeanConfidence)
	s.emitLabels()
	s.Emit(EventDetectionFinished, sum)
	s.Emit(EventStatus, "detection finished: "+sum.String())
	return sum, nil
}

// RunOSD runs open-set detection over the current dataset.
func (s *State) RunOSD(ctx context.Context) (detect.OSDResult, error) {
	ds, _ := s.current()
	if ds == "" {
		return detect.OSDResult{}, s.fail("run osd", ErrNoDataset)
	}
	d, err := s.store.Dataset(ds)
	if err != nil {
		return detect.OSDResult{}, s.fail("run osd", err)
	}

	s.mu.Lock()
	if s.osdRunning || d.OSDStatus == dataset.StatusRunning {
		s.mu.Unlock()
		return detect.OSDResult{}, s.fail("run osd", ErrBusy)
	}
	s.osdRunning = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.osdRunning = false
		s.mu.Unlock()
	}()

	s.Emit(EventOSDStatusChanged, dataset.StatusRunning)
	res, err := detect.RunOSD(ctx, s.store, ds, s.opts.OSD, detect.OSDOptions{
		Delay:  s.opts.OSDDelay,
		Rate:   s.opts.OSDRate,
		Logger: s.opts.Logger,
	})
	if d, derr := s.store.Dataset(ds); derr == nil {
		s.Emit(EventOSDStatusChanged, d.OSDStatus)
	}
	if err != nil {
		return res, s.fail("run osd", err)
	}
	s.emitImages()
	s.emitLabels()
	status := fmt.Sprintf("OSD finished: %d of %d images flagged", res.Flagged, res.Images)
	if res.Skipped > 0 {
		status += fmt.Sprintf(", %d not yet opened", res.Skipped)
	}
	s.Emit(EventStatus, status)
	return res, nil
}

// ExportItems collects the images of the current dataset for export.
func (s *State) ExportItems() ([]export.Item, error) {
	ds, _ := s.current()
	if ds == "" {
		return nil, ErrNoDataset
	}
	images, err := s.store.Images(ds, dataset.FilterAll)
	if err != nil {
		return nil, err
	}
	items := make([]export.Item, len(images))
	for i, img := range images {
		items[i] = export.Item{ID: img.ID, FileName: img.FileName, Width: img.Width, Height: img.Height, Labels: img.Labels}
	}
	return items, nil
}

// Export packs the current dataset in YOLO format after the configured
// delay. It returns the archive and its suggested file name.
func (s *State) Export(ctx context.Context, opts export.Options) (export.Result, string, error) {
	d, ok := s.Dataset()
	if !ok {
		return export.Result{}, "", s.fail("export", ErrNoDataset)
	}
	items, err := s.ExportItems()
	if err != nil {
		return export.Result{}, "", s.fail("export", err)
	}
	if opts.Classes == nil {
		opts.Classes = d.Categories
	}
	if opts.Logger == nil {
		opts.Logger = s.opts.Logger
	}
	res, err := export.Run(ctx, items, opts, s.opts.ExportDelay)
	if err != nil {
		return res, "", s.fail("export", err)
	}
	s.Emit(EventStatus, fmt.Sprintf("YOLO export ready: %d files, %d boxes", res.Files, res.Boxes))
	return res, export.ArchiveName(d.Name), nil
}
