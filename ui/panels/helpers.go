package panels

import (
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"image-annotator/internal/dataset"
	"image-annotator/internal/label"
)

// nrgba converts a straight-alpha palette color for fyne.
func nrgba(c color.RGBA) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// newSwatch creates a small filled square.
func newSwatch(c color.RGBA) *canvas.Rectangle {
	r := canvas.NewRectangle(nrgba(c))
	r.SetMinSize(fyne.NewSize(12, 12))
	r.CornerRadius = 2
	return r
}

// hoverRow wraps list row content and reports pointer enter and leave.
type hoverRow struct {
	widget.BaseWidget

	content fyne.CanvasObject
	onIn    func()
	onOut   func()
}

var _ desktop.Hoverable = (*hoverRow)(nil)

func newHoverRow(content fyne.CanvasObject) *hoverRow {
	r := &hoverRow{content: content}
	r.ExtendBaseWidget(r)
	return r
}

func (r *hoverRow) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(r.content)
}

func (r *hoverRow) MouseIn(*desktop.MouseEvent) {
	if r.onIn != nil {
		r.onIn()
	}
}

func (r *hoverRow) MouseMoved(*desktop.MouseEvent) {}

func (r *hoverRow) MouseOut() {
	if r.onOut != nil {
		r.onOut()
	}
}

// flagText is the image list badge of an OSD flag.
func flagText(f dataset.OSDFlag) string {
	switch f {
	case dataset.FlagUnknown:
		return "? unknown"
	case dataset.FlagReviewed:
		return "reviewed"
	case dataset.FlagClean:
		return "clean"
	}
	return ""
}

// confirmedCount counts labels that are not pending suggestions.
func confirmedCount(labels []label.Label) int {
	n := 0
	for _, l := range labels {
		if !l.IsAISuggestion {
			n++
		}
	}
	return n
}

// imageRowText summarizes an image for the list.
func imageRowText(img dataset.Image) string {
	n := confirmedCount(img.Labels)
	ai := len(img.Labels) - n
	if ai > 0 {
		return fmt.Sprintf("%s  (%d labels, %d AI)", img.FileName, n, ai)
	}
	return fmt.Sprintf("%s  (%d labels)", img.FileName, n)
}

// emptyHint is shown in place of an empty list.
func emptyHint(text string) fyne.CanvasObject {
	l := widget.NewLabel(text)
	l.Alignment = fyne.TextAlignCenter
	l.TextStyle = fyne.TextStyle{Italic: true}
	return container.NewCenter(l)
}
