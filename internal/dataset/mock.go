package dataset

import (
	"fmt"
	"math/rand/v2"
	"time"

	"image-annotator/internal/label"
	"image-annotator/pkg/geometry"
)

// Mock image geometry: every generated image is 800x600.
const (
	MockImageWidth  = 800
	MockImageHeight = 600
)

var mockDatasets = []struct {
	id, name   string
	status     OSDStatus
	categories []string
}{
	{"ds-1", "Vehicle images", StatusDone, []string{"car", "truck", "bus", "motorcycle"}},
	{"ds-2", "Road scenes", StatusRunning, []string{"road", "lane line", "traffic sign", "traffic light"}},
	{"ds-3", "Pedestrians", StatusIdle, []string{"pedestrian", "bicycle", "motorcycle", "backpack"}},
}

// mockCategories is the pool random labels draw from; it is wider than the
// dataset lists on purpose, like imported data.
var mockCategories = []string{
	"car", "pedestrian", "bicycle", "motorcycle", "truck", "bus", "traffic light", label.CategoryUnknown,
}

// DefaultCategories is the starting category list of a user-created dataset.
var DefaultCategories = []string{"object", "person", "vehicle"}

// Seed fills s with the demo datasets. The same seed gives the same images
// and labels; ids come from the store.
func Seed(s *Store, seed int64) error {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9E3779B97F4A7C15))
	base := time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)

	for i, md := range mockDatasets {
		d := s.CreateDataset(Dataset{
			ID:         md.id,
			Name:       md.name,
			OSDStatus:  md.status,
			UpdatedAt:  base.AddDate(0, 0, -i),
			Categories: md.categories,
		})
		if err := SeedImages(s, d.ID, rng); err != nil {
			return err
		}
	}
	return nil
}

// SeedImages appends 10 to 29 random images to a dataset.
func SeedImages(s *Store, dsID string, rng *rand.Rand) error {
	n := rng.IntN(20) + 10
	flags := []OSDFlag{FlagUnknown, FlagReviewed, FlagClean}

	for i := 1; i <= n; i++ {
		img := Image{
			ID:       fmt.Sprintf("img-%s-%d", dsID, i),
			FileName: fmt.Sprintf("image_%04d.jpg", i),
			URL:      fmt.Sprintf("https://picsum.photos/id/%d/%d/%d", (i*10)%100, MockImageWidth, MockImageHeight),
			Width:    MockImageWidth,
			Height:   MockImageHeight,
			OSDFlag:  flags[rng.IntN(len(flags))],
		}
		for j := rng.IntN(3); j > 0; j-- {
			img.Labels = append(img.Labels, randomLabel(rng))
		}
		if _, err := s.AddImage(dsID, img); err != nil {
			return err
		}
	}
	return nil
}

func randomLabel(rng *rand.Rand) label.Label {
	rp := func() geometry.Point2D {
		return geometry.Pt(rng.Float64()*MockImageWidth, rng.Float64()*MockImageHeight)
	}

	var shape label.Shape
	switch rng.IntN(3) {
	case 0:
		a := rp()
		shape = label.Rect{A: a, B: a.Add(geometry.Pt(20+rng.Float64()*200, 20+rng.Float64()*150))}
	case 1:
		pts := make([]geometry.Point2D, rng.IntN(3)+3)
		for k := range pts {
			pts[k] = rp()
		}
		shape = label.Polygon{Vertices: pts}
	default:
		shape = label.Point{At: rp()}
	}

	return label.Label{
		Category:       mockCategories[rng.IntN(len(mockCategories))],
		Shape:          shape,
		IsAISuggestion: rng.Float64() > 0.5,
		Confidence:     rng.Float64()*0.5 + 0.5,
	}
}
