// Package label defines the annotation record shared by the canvas core, the
// dataset store and the exporters.
package label

import (
	"errors"
	"fmt"
	"math"
)

// Reserved category names.
const (
	CategoryUnknown   = "unknown"
	CategoryUnlabeled = "unlabeled"
)

// ErrKindChange is returned when an update tries to change a label's type.
var ErrKindChange = errors.New("label type cannot change")

// Label is one annotation on one image.
type Label struct {
	ID             string
	Category       string
	Shape          Shape
	IsAISuggestion bool
	// Confidence is in [0,1]; zero means no score was reported.
	Confidence float64
}

// Kind returns the shape kind, or "" when the label has no shape.
func (l Label) Kind() Kind {
	if l.Shape == nil {
		return ""
	}
	return l.Shape.Kind()
}

// IsUnknown reports whether the label still carries a placeholder category.
func (l Label) IsUnknown() bool {
	return l.Category == CategoryUnknown || l.Category == CategoryUnlabeled || l.Category == ""
}

// IsPendingSuggestion reports whether the label is an AI proposal that has
// not been accepted.
func (l Label) IsPendingSuggestion() bool {
	return l.IsAISuggestion
}

// Validate checks the shape cardinality and the confidence range.
func (l Label) Validate() error {
	if err := ValidateShape(l.Shape); err != nil {
		return err
	}
	if math.IsNaN(l.Confidence) || l.Confidence < 0 || l.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", l.Confidence)
	}
	return nil
}

// Caption is the text drawn next to a label: the category, followed by the
// rounded confidence percentage when one is present.
func (l Label) Caption() string {
	if l.Confidence > 0 {
		return fmt.Sprintf("%s (%d%%)", l.Category, int(math.Round(l.Confidence*100)))
	}
	return l.Category
}

// FormatCoordinates renders the position of a label for list views.
func (l Label) FormatCoordinates() string {
	switch s := l.Shape.(type) {
	case Rect:
		b := s.Bounds()
		return fmt.Sprintf("X:%d Y:%d W:%d H:%d", round(b.X), round(b.Y), round(b.Width), round(b.Height))
	case Polygon:
		return fmt.Sprintf("polygon: %d points", len(s.Vertices))
	case Point:
		return fmt.Sprintf("X:%d Y:%d", round(s.At.X), round(s.At.Y))
	default:
		return ""
	}
}

func round(v float64) int {
	return int(math.Round(v))
}

// Update carries the fields of a partial label change. Nil fields are left
// untouched.
type Update struct {
	Category       *string
	Shape          Shape
	IsAISuggestion *bool
	Confidence     *float64
}

// SetCategory returns an update that only changes the category.
func SetCategory(category string) Update {
	return Update{Category: &category}
}

// SetShape returns an update that only replaces the geometry.
func SetShape(s Shape) Update {
	return Update{Shape: s}
}

// Accept returns the update that turns an AI suggestion into a confirmed
// label of the given category.
func Accept(category string) Update {
	ai := false
	return Update{Category: &category, IsAISuggestion: &ai}
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.Category == nil && u.Shape == nil && u.IsAISuggestion == nil && u.Confidence == nil
}

// Apply returns l with the update applied. The shape kind is immutable.
func (u Update) Apply(l Label) (Label, error) {
	if u.Shape != nil {
		if l.Shape != nil && u.Shape.Kind() != l.Shape.Kind() {
			return l, fmt.Errorf("%w: %s to %s", ErrKindChange, l.Shape.Kind(), u.Shape.Kind())
		}
		if err := ValidateShape(u.Shape); err != nil {
			return l, err
		}
		l.Shape = u.Shape
	}
	if u.Category != nil {
		l.Category = *u.Category
	}
	if u.IsAISuggestion != nil {
		l.IsAISuggestion = *u.IsAISuggestion
	}
	if u.Confidence != nil {
		l.Confidence = *u.Confidence
	}
	return l, l.Validate()
}
