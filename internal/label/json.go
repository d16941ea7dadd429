package label

import (
	"encoding/json"
	"fmt"

	"image-annotator/pkg/geometry"
)

// wireLabel is the JSON form: coordinates as [[x, y], ...] next to a type tag.
type wireLabel struct {
	ID             string       `json:"id,omitempty"`
	Category       string       `json:"category"`
	Type           Kind         `json:"type"`
	Coordinates    [][2]float64 `json:"coordinates"`
	IsAISuggestion bool         `json:"isAiSuggestion,omitempty"`
	Confidence     float64      `json:"confidence,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (l Label) MarshalJSON() ([]byte, error) {
	if l.Shape == nil {
		return nil, fmt.Errorf("label %q: %w: missing shape", l.ID, ErrInvalidShape)
	}
	pts := l.Shape.Points()
	coords := make([][2]float64, len(pts))
	for i, p := range pts {
		coords[i] = [2]float64{p.X, p.Y}
	}
	return json.Marshal(wireLabel{
		ID:             l.ID,
		Category:       l.Category,
		Type:           l.Shape.Kind(),
		Coordinates:    coords,
		IsAISuggestion: l.IsAISuggestion,
		Confidence:     l.Confidence,
	})
}

// UnmarshalJSON implements json.Unmarshaler and validates the geometry.
func (l *Label) UnmarshalJSON(data []byte) error {
	var w wireLabel
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	pts := make([]geometry.Point2D, len(w.Coordinates))
	for i, c := range w.Coordinates {
		pts[i] = geometry.Pt(c[0], c[1])
	}
	shape, err := NewShape(w.Type, pts)
	if err != nil {
		return fmt.Errorf("label %q: %w", w.ID, err)
	}
	*l = Label{
		ID:             w.ID,
		Category:       w.Category,
		Shape:          shape,
		IsAISuggestion: w.IsAISuggestion,
		Confidence:     w.Confidence,
	}
	return nil
}
