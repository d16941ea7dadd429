package panels

import (
	"testing"

	"fyne.io/fyne/v2/test"

	"image-annotator/internal/annotate"
	"image-annotator/internal/app"
	"image-annotator/internal/dataset"
	"image-annotator/internal/label"
	"image-annotator/pkg/colorutil"
	"image-annotator/pkg/geometry"

	"github.com/stretchr/testify/assert"
)

func TestImageRowText(t *testing.T) {
	img := dataset.Image{FileName: "a.jpg"}
	assert.Equal(t, "a.jpg  (0 labels)", imageRowText(img))

	img.Labels = []label.Label{
		{Category: "car", Shape: label.Point{At: geometry.Pt(1, 1)}},
		{Category: label.CategoryUnknown, Shape: label.Point{At: geometry.Pt(2, 2)}, IsAISuggestion: true},
	}
	assert.Equal(t, "a.jpg  (1 labels, 1 AI)", imageRowText(img))
}

func TestFlagText(t *testing.T) {
	assert.Equal(t, "? unknown", flagText(dataset.FlagUnknown))
	assert.Equal(t, "clean", flagText(dataset.FlagClean))
	assert.Empty(t, flagText(""))
}

func TestSidePanelTabTitlesCountLabels(t *testing.T) {
	a := test.NewApp()
	t.Cleanup(a.Quit)

	state := app.NewState(app.Options{})
	ctrl := annotate.NewController(state, annotate.DefaultOptions())
	sp := NewSidePanel(state, ctrl, colorutil.NewAssigner(colorutil.StrategyHash, nil))

	state.Emit(app.EventLabelsChanged, []label.Label{
		{ID: "1", Category: "car", Shape: label.NewRect(geometry.Pt(0, 0), geometry.Pt(5, 5))},
		{ID: "2", Category: "bus", Shape: label.Point{At: geometry.Pt(3, 3)}},
		{ID: "3", Category: label.CategoryUnknown, Shape: label.Point{At: geometry.Pt(4, 4)}, IsAISuggestion: true, Confidence: 0.5},
	})
	assert.Equal(t, "Labels (2)", sp.labelsTab.Text)
	assert.Equal(t, "AI Suggestions (1)", sp.suggestionsTab.Text)

	state.Emit(app.EventLabelsChanged, []label.Label(nil))
	assert.Equal(t, "Labels (0)", sp.labelsTab.Text)
	assert.Equal(t, "AI Suggestions", sp.suggestionsTab.Text)
}
