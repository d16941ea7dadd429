// Package app holds the application state behind the annotation window:
// the dataset store, the current dataset and image, the detection prompt,
// and the events the panels listen to.
package app

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"

	"image-annotator/internal/dataset"
	"image-annotator/internal/detect"
	"image-annotator/internal/imagesource"
	"image-annotator/internal/label"
	"image-annotator/internal/logging"
	"image-annotator/pkg/geometry"
)

var (
	// ErrNoDataset is returned when an operation needs a selected dataset.
	ErrNoDataset = errors.New("no dataset selected")
	// ErrNoImage is returned when an operation needs a selected image.
	ErrNoImage = errors.New("no image selected")
	// ErrBusy is returned while another run of the same kind is active.
	ErrBusy = errors.New("already running")
)

// EventType identifies different application events.
type EventType int

const (
	EventDatasetsChanged   EventType = iota // nil
	EventDatasetSelected                    // dataset.Dataset
	EventImagesChanged                      // []dataset.Image after filtering
	EventImageSelected                      // dataset.Image, zero when cleared
	EventLabelsChanged                      // []label.Label of the current image
	EventCategoriesChanged                  // []string
	EventPromptChanged                      // Prompt
	EventDetectionStarted                   // detect.PromptMode
	EventDetectionFinished                  // detect.Summary
	EventOSDStatusChanged                   // dataset.OSDStatus
	EventStatus                             // string
	EventError                              // error
)

// EventListener is called when an event occurs.
type EventListener func(data any)

// Prompt is the detection prompt of the current image.
type Prompt struct {
	Mode detect.PromptMode
	Text string
	// Reference is the image-space region picked for image mode.
	Reference *geometry.Rect
	// ReferenceURL is the cropped reference as a PNG data URL, when pixels
	// are available.
	ReferenceURL string
}

// Options configures a State.
type Options struct {
	Store *dataset.Store
	// Detector serves Run detection; OSD serves the dataset-wide run.
	Detector detect.Detector
	OSD      detect.Detector
	OSDDelay time.Duration
	OSDRate  float64
	// ExportDelay is waited before an export archive is produced.
	ExportDelay time.Duration
	Logger      *slog.Logger
}

// State holds the application state. Safe for concurrent use; listeners run
// on the goroutine that caused the event, after internal locks are released.
type State struct {
	mu sync.RWMutex

	opts  Options
	store *dataset.Store
	log   *slog.Logger

	datasetID string
	imageID   string
	filter    dataset.Filter
	prompt    Prompt
	pixels    image.Image

	detecting  bool
	osdRunning bool

	listeners map[EventType][]EventListener
}

// NewState creates application state over opts.Store, or an empty store.
func NewState(opts Options) *State {
	if opts.Store == nil {
		opts.Store = dataset.NewStore()
	}
	if opts.Detector == nil {
		opts.Detector = detect.NewSimulated(detect.SimulatedOptions{MaxSuggestions: 3})
	}
	if opts.OSD == nil {
		opts.OSD = detect.NewSimulated(detect.SimulatedOptions{MaxSuggestions: 1})
	}
	return &State{
		opts:      opts,
		store:     opts.Store,
		log:       logging.OrNop(opts.Logger).With("component", "app"),
		filter:    dataset.FilterAll,
		prompt:    Prompt{Mode: detect.ModeFree},
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data any) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Store returns the underlying dataset store.
func (s *State) Store() *dataset.Store {
	return s.store
}

func (s *State) current() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.datasetID, s.imageID
}

func (s *State) currentImage() (string, string, error) {
	ds, img := s.current()
	if ds == "" {
		return "", "", ErrNoDataset
	}
	if img == "" {
		return "", "", ErrNoImage
	}
	return ds, img, nil
}

// fail logs err and reports it to listeners.
func (s *State) fail(op string, err error) error {
	err = fmt.Errorf("%s: %w", op, err)
	s.log.Warn("operation failed", "op", op, "error", err)
	s.Emit(EventError, err)
	return err
}

// Datasets lists all datasets.
func (s *State) Datasets() []dataset.Dataset {
	return s.store.Datasets()
}

// CreateDataset adds a dataset with the default category list when none is
// given, and selects it.
func (s *State) CreateDataset(name, description string, categories []string) (dataset.Dataset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return dataset.Dataset{}, errors.New("dataset name is empty")
	}
	if len(categories) == 0 {
		categories = dataset.DefaultCategories
	}
	d := s.store.CreateDataset(dataset.Dataset{Name: name, Description: description, Categories: categories})
	s.Emit(EventDatasetsChanged, nil)
	return d, s.SelectDataset(d.ID)
}

// SelectDataset makes id the current dataset and clears the current image.
func (s *State) SelectDataset(id string) error {
	d, err := s.store.Dataset(id)
	if err != nil {
		return s.fail("select dataset", err)
	}
	s.mu.Lock()
	s.datasetID = d.ID
	s.imageID = ""
	s.pixels = nil
	s.prompt = Prompt{Mode: s.prompt.Mode, Text: s.prompt.Text}
	s.mu.Unlock()

	s.log.Info("dataset selected", "dataset", d.ID, "name", d.Name)
	s.Emit(EventDatasetSelected, d)
	s.emitImages()
	s.Emit(EventImageSelected, dataset.Image{})
	s.Emit(EventCategoriesChanged, d.Categories)
	return nil
}

// Dataset returns the current dataset.
func (s *State) Dataset() (dataset.Dataset, bool) {
	ds, _ := s.current()
	if ds == "" {
		return dataset.Dataset{}, false
	}
	d, err := s.store.Dataset(ds)
	return d, err == nil
}

// SetFilter changes the image list filter.
func (s *State) SetFilter(f dataset.Filter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
	s.emitImages()
}

// Filter returns the image list filter.
func (s *State) Filter() dataset.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// Images lists the current dataset's images that pass the filter.
func (s *State) Images() []dataset.Image {
	s.mu.RLock()
	ds, f := s.datasetID, s.filter
	s.mu.RUnlock()
	if ds == "" {
		return nil
	}
	images, err := s.store.Images(ds, f)
	if err != nil {
		return nil
	}
	return images
}

func (s *State) emitImages() {
	s.Emit(EventImagesChanged, s.Images())
}

// SelectImage makes id the current image. The reference region of the
// previous image is dropped.
func (s *State) SelectImage(id string) error {
	ds, _ := s.current()
	if ds == "" {
		return s.fail("select image", ErrNoDataset)
	}
	img, err := s.store.Image(ds, id)
	if err != nil {
		return s.fail("select image", err)
	}
	s.mu.Lock()
	s.imageID = img.ID
	s.pixels = nil
	s.prompt.Reference = nil
	s.prompt.ReferenceURL = ""
	prompt := s.prompt
	s.mu.Unlock()

	s.Emit(EventImageSelected, img)
	s.Emit(EventLabelsChanged, img.Labels)
	s.Emit(EventPromptChanged, prompt)
	return nil
}

// Image returns the current image.
func (s *State) Image() (dataset.Image, bool) {
	ds, id, err := s.currentImage()
	if err != nil {
		return dataset.Image{}, false
	}
	img, err := s.store.Image(ds, id)
	return img, err == nil
}

// AddImage appends an image to the current dataset. Its size is learned
// when it is first displayed.
func (s *State) AddImage(fileName, url string) (dataset.Image, error) {
	ds, _ := s.current()
	if ds == "" {
		return dataset.Image{}, s.fail("add image", ErrNoDataset)
	}
	img, err := s.store.AddImage(ds, dataset.Image{FileName: fileName, URL: url})
	if err != nil {
		return dataset.Image{}, s.fail("add image", err)
	}
	s.log.Info("image added", "dataset", ds, "image", img.ID, "file", fileName)
	s.emitImages()
	return img, nil
}

// ImageLoaded records the decoded pixels of the current image and its size.
func (s *State) ImageLoaded(img imagesource.Loaded) error {
	ds, id, err := s.currentImage()
	if err != nil {
		return err
	}
	w, h := img.Size()
	if err := s.store.SetImageSize(ds, id, w, h); err != nil {
		return err
	}
	s.mu.Lock()
	if s.imageID == id {
		s.pixels = img.Image
	}
	s.mu.Unlock()
	return nil
}

// Labels returns the labels of the current image.
func (s *State) Labels() []label.Label {
	ds, id, err := s.currentImage()
	if err != nil {
		return nil
	}
	labels, _ := s.store.Labels(ds, id)
	return labels
}

// Suggestions returns the pending AI suggestions of the current image.
func (s *State) Suggestions() []label.Label {
	ds, id, err := s.currentImage()
	if err != nil {
		return nil
	}
	labels, _ := s.store.Suggestions(ds, id)
	return labels
}

func (s *State) emitLabels() {
	s.Emit(EventLabelsChanged, s.Labels())
}

// Categories returns the category list of the current dataset.
func (s *State) Categories() []string {
	ds, _ := s.current()
	cats, _ := s.store.Categories(ds)
	return cats
}

func (s *State) emitCategories() {
	s.Emit(EventCategoriesChanged, s.Categories())
}

// AddLabel stores a label drawn on the canvas. Implements annotate.Host.
func (s *State) AddLabel(l label.Label) {
	ds, id, err := s.currentImage()
	if err != nil {
		_ = s.fail("add label", err)
		return
	}
	stored, err := s.store.AddLabel(ds, id, l)
	if err != nil {
		_ = s.fail("add label", err)
		return
	}
	s.log.Debug("label added", "image", id, "label", stored.ID, "kind", stored.Kind(), "category", stored.Category)
	if !stored.IsUnknown() {
		s.AddCategory(stored.Category)
	}
	s.emitLabels()
}

// UpdateLabel applies a partial update. Implements annotate.Host.
func (s *State) UpdateLabel(labelID string, u label.Update) {
	if err := s.updateLabel(labelID, u); err != nil {
		_ = s.fail("update label", err)
	}
}

func (s *State) updateLabel(labelID string, u label.Update) error {
	ds, id, err := s.currentImage()
	if err != nil {
		return err
	}
	if _, err := s.store.UpdateLabel(ds, id, labelID, u); err != nil {
		return err
	}
	if u.Category != nil && !(label.Label{Category: *u.Category}).IsUnknown() {
		s.AddCategory(*u.Category)
	}
	s.emitLabels()
	return nil
}

// DeleteLabel removes a label. Implements annotate.Host.
func (s *State) DeleteLabel(labelID string) {
	ds, id, err := s.currentImage()
	if err == nil {
		err = s.store.DeleteLabel(ds, id, labelID)
	}
	if err != nil {
		_ = s.fail("delete label", err)
		return
	}
	s.emitLabels()
}

// AddCategory appends a category to the current dataset. Implements
// annotate.Host.
func (s *State) AddCategory(name string) {
	ds, _ := s.current()
	if ds == "" {
		return
	}
	changed, err := s.store.AddCategory(ds, name)
	if err != nil {
		_ = s.fail("add category", err)
		return
	}
	if changed {
		s.emitCategories()
	}
}

// SetLabelCategory changes the category of a label from the label panel.
func (s *State) SetLabelCategory(labelID, category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return s.fail("set category", dataset.ErrInvalidCategory)
	}
	if err := s.updateLabel(labelID, label.SetCategory(category)); err != nil {
		return s.fail("set category", err)
	}
	return nil
}

// RenameCategory renames a category across the current dataset.
func (s *State) RenameCategory(from, to string) (int, error) {
	ds, _ := s.current()
	if ds == "" {
		return 0, s.fail("rename category", ErrNoDataset)
	}
	n, err := s.store.RenameCategory(ds, from, to)
	if err != nil {
		return 0, s.fail("rename category", err)
	}
	s.log.Info("category renamed", "from", from, "to", to, "labels", n)
	s.emitCategories()
	s.emitLabels()
	return n, nil
}

// AcceptSuggestion confirms an AI suggestion of the current image.
func (s *State) AcceptSuggestion(labelID, category string) error {
	ds, id, err := s.currentImage()
	if err == nil {
		_, err = s.store.AcceptSuggestion(ds, id, labelID, category)
	}
	if err != nil {
		return s.fail("accept suggestion", err)
	}
	s.emitCategories()
	s.emitLabels()
	return nil
}

// RejectSuggestion deletes an AI suggestion of the current image.
func (s *State) RejectSuggestion(labelID string) error {
	ds, id, err := s.currentImage()
	if err != nil {
		return s.fail("reject suggestion", err)
	}
	l, err := s.labelByID(ds, id, labelID)
	if err != nil {
		return s.fail("reject suggestion", err)
	}
	if !l.IsAISuggestion {
		return s.fail("reject suggestion", dataset.ErrNotSuggestion)
	}
	s.DeleteLabel(labelID)
	return nil
}

func (s *State) labelByID(ds, img, id string) (label.Label, error) {
	labels, err := s.store.Labels(ds, img)
	if err != nil {
		return label.Label{}, err
	}
	for _, l := range labels {
		if l.ID == id {
			return l, nil
		}
	}
	return label.Label{}, fmt.Errorf("label %q: %w", id, dataset.ErrNotFound)
}

// MarkReviewed clears the OSD flag of the current image.
func (s *State) MarkReviewed() error {
	ds, id, err := s.currentImage()
	if err == nil {
		err = s.store.MarkReviewed(ds, id)
	}
	if err != nil {
		return s.fail("mark reviewed", err)
	}
	s.emitImages()
	s.Emit(EventStatus, "image marked as reviewed")
	return nil
}

// Stats summarizes the current dataset.
func (s *State) Stats() (dataset.Stats, error) {
	ds, _ := s.current()
	if ds == "" {
		return dataset.Stats{}, ErrNoDataset
	}
	return s.store.Stats(ds)
}
