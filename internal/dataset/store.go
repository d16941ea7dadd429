// Package dataset is the in-memory owner of datasets, their images and the
// label collection of every image. It plays the host role for the canvas:
// labels proposed by the canvas get their ids here.
package dataset

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"image-annotator/internal/label"
)

var (
	// ErrNotFound is returned for unknown dataset, image or label ids.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCategory is returned for blank category names.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrNotSuggestion is returned when accepting a label that is not an AI
	// suggestion.
	ErrNotSuggestion = errors.New("label is not an AI suggestion")
)

// OSDFlag is the open-set detection review flag of an image.
type OSDFlag string

const (
	FlagUnknown  OSDFlag = "unknown"
	FlagReviewed OSDFlag = "reviewed"
	FlagClean    OSDFlag = "clean"
)

// OSDStatus is the state of the dataset-wide detection run.
type OSDStatus string

const (
	StatusIdle    OSDStatus = "idle"
	StatusRunning OSDStatus = "running"
	StatusDone    OSDStatus = "done"
)

// Filter selects images by OSD flag.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterUnknown Filter = "unknown"
	FilterClean   Filter = "clean"
)

func (f Filter) match(img *Image) bool {
	switch f {
	case FilterUnknown:
		return img.OSDFlag == FlagUnknown
	case FilterClean:
		return img.OSDFlag == FlagClean
	default:
		return true
	}
}

// Dataset describes a collection of images sharing one category list.
type Dataset struct {
	ID          string
	Name        string
	Description string
	OSDStatus   OSDStatus
	UpdatedAt   time.Time
	Categories  []string
	ImageCount  int
}

// Image is one picture and the labels drawn on it.
type Image struct {
	ID       string
	FileName string
	URL      string
	Width    int
	Height   int
	OSDFlag  OSDFlag
	Labels   []label.Label
}

func (img *Image) clone() Image {
	c := *img
	c.Labels = slices.Clone(img.Labels)
	return c
}

func (img *Image) labelIndex(id string) int {
	return slices.IndexFunc(img.Labels, func(l label.Label) bool { return l.ID == id })
}

type entry struct {
	meta   Dataset
	images []*Image
}

func (e *entry) image(id string) (*Image, error) {
	for _, img := range e.images {
		if img.ID == id {
			return img, nil
		}
	}
	return nil, fmt.Errorf("image %q: %w", id, ErrNotFound)
}

// Stats summarizes a dataset.
type Stats struct {
	Images      int
	Labels      int
	Suggestions int
	Unknown     int
	Flagged     int
}

// Store holds datasets in creation order. Safe for concurrent use; all
// returned values are copies.
type Store struct {
	mu       sync.RWMutex
	datasets map[string]*entry
	order    []string
	newID    func() string
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIDFunc replaces the uuid generator.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		datasets: make(map[string]*entry),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) dataset(id string) (*entry, error) {
	e, ok := s.datasets[id]
	if !ok {
		return nil, fmt.Errorf("dataset %q: %w", id, ErrNotFound)
	}
	return e, nil
}

func (s *Store) image(dsID, imgID string) (*entry, *Image, error) {
	e, err := s.dataset(dsID)
	if err != nil {
		return nil, nil, err
	}
	img, err := e.image(imgID)
	if err != nil {
		return nil, nil, err
	}
	return e, img, nil
}

func snapshot(e *entry) Dataset {
	d := e.meta
	d.Categories = slices.Clone(e.meta.Categories)
	d.ImageCount = len(e.images)
	return d
}

// CreateDataset adds a dataset. An empty id is generated.
func (s *Store) CreateDataset(d Dataset) Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = s.newID()
	}
	if d.OSDStatus == "" {
		d.OSDStatus = StatusIdle
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = s.now()
	}
	cats := d.Categories
	d.Categories = nil
	for _, c := range cats {
		d.Categories = addUnique(d.Categories, c)
	}
	if _, exists := s.datasets[d.ID]; !exists {
		s.order = append(s.order, d.ID)
	}
	e := &entry{meta: d}
	s.datasets[d.ID] = e
	return snapshot(e)
}

// RemoveDataset deletes a dataset with all images and labels.
func (s *Store) RemoveDataset(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.dataset(id); err != nil {
		return err
	}
	delete(s.datasets, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

// Datasets lists datasets in creation order.
func (s *Store) Datasets() []Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Dataset, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, snapshot(s.datasets[id]))
	}
	return out
}

// Dataset returns one dataset.
func (s *Store) Dataset(id string) (Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.dataset(id)
	if err != nil {
		return Dataset{}, err
	}
	return snapshot(e), nil
}

// SetOSDStatus records the state of the dataset-wide detection run.
func (s *Store) SetOSDStatus(id string, status OSDStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.dataset(id)
	if err != nil {
		return err
	}
	e.meta.OSDStatus = status
	e.meta.UpdatedAt = s.now()
	return nil
}

// AddImage appends an image to a dataset. An empty id is generated and
// label ids missing from img are assigned.
func (s *Store) AddImage(dsID string, img Image) (Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.dataset(dsID)
	if err != nil {
		return Image{}, err
	}
	if img.ID == "" {
		img.ID = s.newID()
	}
	if img.OSDFlag == "" {
		img.OSDFlag = FlagClean
	}
	labels := img.Labels
	img.Labels = nil
	for _, l := range labels {
		if err := l.Validate(); err != nil {
			return Image{}, fmt.Errorf("image %q: %w", img.ID, err)
		}
		if l.ID == "" {
			l.ID = s.newID()
		}
		img.Labels = append(img.Labels, l)
	}
	stored := img.clone()
	e.images = append(e.images, &stored)
	return stored.clone(), nil
}

// Images lists the images of a dataset that pass filter.
func (s *Store) Images(dsID string, filter Filter) ([]Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.dataset(dsID)
	if err != nil {
		return nil, err
	}
	out := make([]Image, 0, len(e.images))
	for _, img := range e.images {
		if filter.match(img) {
			out = append(out, img.clone())
		}
	}
	return out, nil
}

// Image returns one image.
func (s *Store) Image(dsID, imgID string) (Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, img, err := s.image(dsID, imgID)
	if err != nil {
		return Image{}, err
	}
	return img.clone(), nil
}

// SetImageSize records the decoded pixel size of an image.
func (s *Store) SetImageSize(dsID, imgID string, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, img, err := s.image(dsID, imgID)
	if err != nil {
		return err
	}
	img.Width, img.Height = width, height
	return nil
}

// SetOSDFlag sets the review flag of an image.
func (s *Store) SetOSDFlag(dsID, imgID string, flag OSDFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, img, err := s.image(dsID, imgID)
	if err != nil {
		return err
	}
	img.OSDFlag = flag
	return nil
}

// MarkReviewed flags an image as reviewed.
func (s *Store) MarkReviewed(dsID, imgID string) error {
	return s.SetOSDFlag(dsID, imgID, FlagReviewed)
}

// Labels returns the labels of an image in draw order.
func (s *Store) Labels(dsID, imgID string) ([]label.Label, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, img, err := s.image(dsID, imgID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(img.Labels), nil
}

// Suggestions returns the AI suggestions of an image that are still pending.
func (s *Store) Suggestions(dsID, imgID string) ([]label.Label, error) {
	labels, err := s.Labels(dsID, imgID)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(labels, func(l label.Label) bool { return !l.IsPendingSuggestion() }), nil
}

// AddLabel stores a new label and returns it with its assigned id. Any id
// carried by l is replaced.
func (s *Store) AddLabel(dsID, imgID string, l label.Label) (label.Label, error) {
	if err := l.Validate(); err != nil {
		return label.Label{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, img, err := s.image(dsID, imgID)
	if err != nil {
		return label.Label{}, err
	}
	l.ID = s.newID()
	img.Labels = append(img.Labels, l)
	e.meta.UpdatedAt = s.now()
	return l, nil
}

// UpdateLabel applies a partial change to a label.
func (s *Store) UpdateLabel(dsID, imgID, id string, u label.Update) (label.Label, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, img, err := s.image(dsID, imgID)
	if err != nil {
		return label.Label{}, err
	}
	i := img.labelIndex(id)
	if i < 0 {
		return label.Label{}, fmt.Errorf("label %q: %w", id, ErrNotFound)
	}
	updated, err := u.Apply(img.Labels[i])
	if err != nil {
		return label.Label{}, fmt.Errorf("label %q: %w", id, err)
	}
	img.Labels[i] = updated
	e.meta.UpdatedAt = s.now()
	return updated, nil
}

// DeleteLabel removes a label.
func (s *Store) DeleteLabel(dsID, imgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, img, err := s.image(dsID, imgID)
	if err != nil {
		return err
	}
	i := img.labelIndex(id)
	if i < 0 {
		return fmt.Errorf("label %q: %w", id, ErrNotFound)
	}
	img.Labels = slices.Delete(img.Labels, i, i+1)
	e.meta.UpdatedAt = s.now()
	return nil
}

// AcceptSuggestion confirms an AI suggestion under category. The coordinates
// are kept, the AI flag is cleared and the category joins the dataset list.
func (s *Store) AcceptSuggestion(dsID, imgID, id, category string) (label.Label, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return label.Label{}, ErrInvalidCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, img, err := s.image(dsID, imgID)
	if err != nil {
		return label.Label{}, err
	}
	i := img.labelIndex(id)
	if i < 0 {
		return label.Label{}, fmt.Errorf("label %q: %w", id, ErrNotFound)
	}
	if !img.Labels[i].IsAISuggestion {
		return label.Label{}, fmt.Errorf("label %q: %w", id, ErrNotSuggestion)
	}
	updated, err := label.Accept(category).Apply(img.Labels[i])
	if err != nil {
		return label.Label{}, err
	}
	img.Labels[i] = updated
	e.meta.Categories = addUnique(e.meta.Categories, category)
	e.meta.UpdatedAt = s.now()
	return updated, nil
}

// Categories returns the ordered category list of a dataset.
func (s *Store) Categories(dsID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.dataset(dsID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(e.meta.Categories), nil
}

// AddCategory appends a category unless it already exists. It reports
// whether the list changed.
func (s *Store) AddCategory(dsID, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, ErrInvalidCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.dataset(dsID)
	if err != nil {
		return false, err
	}
	before := len(e.meta.Categories)
	e.meta.Categories = addUnique(e.meta.Categories, name)
	return len(e.meta.Categories) != before, nil
}

// RenameCategory renames a category and every label that references it. When
// the new name already exists the two categories merge. It returns the
// number of labels changed. Renaming a category to itself changes nothing.
func (s *Store) RenameCategory(dsID, from, to string) (int, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return 0, ErrInvalidCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.dataset(dsID)
	if err != nil {
		return 0, err
	}
	i := slices.Index(e.meta.Categories, from)
	if i < 0 {
		return 0, fmt.Errorf("category %q: %w", from, ErrNotFound)
	}
	if from == to {
		return 0, nil
	}
	if slices.Contains(e.meta.Categories, to) {
		e.meta.Categories = slices.Delete(e.meta.Categories, i, i+1)
	} else {
		e.meta.Categories[i] = to
	}

	n := 0
	for _, img := range e.images {
		for j := range img.Labels {
			if img.Labels[j].Category == from {
				img.Labels[j].Category = to
				n++
			}
		}
	}
	e.meta.UpdatedAt = s.now()
	return n, nil
}

// Stats counts images and labels of a dataset.
func (s *Store) Stats(dsID string) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.dataset(dsID)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Images: len(e.images)}
	for _, img := range e.images {
		if img.OSDFlag == FlagUnknown {
			st.Flagged++
		}
		for _, l := range img.Labels {
			switch {
			case l.IsPendingSuggestion():
				st.Suggestions++
			case l.IsUnknown():
				st.Unknown++
			default:
				st.Labels++
			}
		}
	}
	return st, nil
}

func addUnique(list []string, name string) []string {
	name = strings.TrimSpace(name)
	if name == "" || slices.Contains(list, name) {
		return list
	}
	return append(list, name)
}
