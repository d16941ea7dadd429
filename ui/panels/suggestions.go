package panels

import (
	"fmt"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"image-annotator/internal/annotate"
	"image-annotator/internal/app"
	"image-annotator/internal/label"
	"image-annotator/pkg/colorutil"
)

type suggestionRow struct {
	id       string
	swatch   *canvas.Rectangle
	caption  *widget.Label
	coords   *widget.Label
	category *widget.Select
	accept   *widget.Button
	reject   *widget.Button
}

// SuggestionPanel reviews the AI suggestions of the current image: each can
// be accepted under a category or rejected.
type SuggestionPanel struct {
	state     *app.State
	ctrl      *annotate.Controller
	colors    *colorutil.Assigner
	container fyne.CanvasObject

	list        *widget.List
	countLabel  *widget.Label
	rejectAll   *widget.Button
	placeholder fyne.CanvasObject

	mu          sync.Mutex
	suggestions []label.Label
	categories  []string
	choice      map[string]string
	rows        map[*hoverRow]*suggestionRow
}

// NewSuggestionPanel creates a suggestion panel.
func NewSuggestionPanel(state *app.State, ctrl *annotate.Controller, colors *colorutil.Assigner) *SuggestionPanel {
	sp := &SuggestionPanel{
		state:  state,
		ctrl:   ctrl,
		colors: colors,
		choice: make(map[string]string),
		rows:   make(map[*hoverRow]*suggestionRow),
	}

	sp.countLabel = widget.NewLabel("")
	sp.list = widget.NewList(sp.length, sp.createRow, sp.updateRow)
	sp.rejectAll = widget.NewButton("Reject All", sp.onRejectAll)
	sp.rejectAll.Importance = widget.DangerImportance
	sp.rejectAll.Disable()
	sp.placeholder = emptyHint("No AI suggestions.\nRun detection to get some.")

	top := container.NewBorder(nil, nil, nil, sp.rejectAll, sp.countLabel)
	sp.container = container.NewBorder(top, nil, nil, nil, container.NewStack(sp.list, sp.placeholder))

	sp.setupEventHandlers()
	return sp
}

// Container returns the panel container.
func (sp *SuggestionPanel) Container() fyne.CanvasObject {
	return sp.container
}

func (sp *SuggestionPanel) setupEventHandlers() {
	sp.state.On(app.EventLabelsChanged, func(data any) {
		all, _ := data.([]label.Label)
		var pending []label.Label
		for _, l := range all {
			if l.IsPendingSuggestion() {
				pending = append(pending, l)
			}
		}
		sp.mu.Lock()
		sp.suggestions = pending
		sp.mu.Unlock()
		sp.refresh(len(pending))
	})
	sp.state.On(app.EventCategoriesChanged, func(data any) {
		cats, _ := data.([]string)
		sp.mu.Lock()
		sp.categories = cats
		sp.mu.Unlock()
		sp.list.Refresh()
	})
}

func (sp *SuggestionPanel) refresh(n int) {
	if n == 0 {
		sp.countLabel.SetText("")
		sp.placeholder.Show()
		sp.rejectAll.Disable()
	} else {
		sp.countLabel.SetText(fmt.Sprintf("%d pending", n))
		sp.placeholder.Hide()
		sp.rejectAll.Enable()
	}
	sp.list.Refresh()
}

func (sp *SuggestionPanel) length() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.suggestions)
}

func (sp *SuggestionPanel) createRow() fyne.CanvasObject {
	row := &suggestionRow{
		swatch:  newSwatch(colorutil.AIAccent),
		caption: widget.NewLabel(""),
		coords:  widget.NewLabel(""),
	}
	row.coords.TextStyle = fyne.TextStyle{Monospace: true}
	row.category = widget.NewSelect(nil, nil)
	row.category.PlaceHolder = "Category"
	row.accept = widget.NewButtonWithIcon("", theme.ConfirmIcon(), nil)
	row.accept.Importance = widget.HighImportance
	row.reject = widget.NewButtonWithIcon("", theme.CancelIcon(), nil)
	row.reject.Importance = widget.LowImportance

	content := container.NewVBox(
		container.NewBorder(nil, nil, container.NewCenter(row.swatch), nil,
			container.NewVBox(row.caption, row.coords)),
		container.NewBorder(nil, nil, nil, container.NewHBox(row.accept, row.reject), row.category),
	)
	hr := newHoverRow(content)
	hr.onIn = func() {
		sp.mu.Lock()
		id := sp.rows[hr].id
		sp.mu.Unlock()
		sp.ctrl.SetHighlight(id)
	}
	hr.onOut = func() { sp.ctrl.SetHighlight("") }

	sp.mu.Lock()
	sp.rows[hr] = row
	sp.mu.Unlock()
	return hr
}

func (sp *SuggestionPanel) updateRow(idx widget.ListItemID, obj fyne.CanvasObject) {
	sp.mu.Lock()
	row := sp.rows[obj.(*hoverRow)]
	if row == nil || idx >= len(sp.suggestions) {
		sp.mu.Unlock()
		return
	}
	l := sp.suggestions[idx]
	cats := append([]string(nil), sp.categories...)
	chosen, ok := sp.choice[l.ID]
	if !ok && len(cats) > 0 {
		chosen = cats[0]
	}
	row.id = l.ID
	sp.mu.Unlock()

	row.swatch.FillColor = nrgba(sp.colors.LabelColor(l.Category, true))
	row.swatch.Refresh()
	row.caption.SetText(l.Caption())
	row.coords.SetText(l.FormatCoordinates())

	id := l.ID
	row.category.OnChanged = nil
	row.category.SetOptions(cats)
	row.category.ClearSelected()
	row.category.SetSelected(chosen)
	row.category.OnChanged = func(cat string) {
		sp.mu.Lock()
		sp.choice[id] = cat
		sp.mu.Unlock()
	}
	row.accept.OnTapped = func() {
		cat := row.category.Selected
		if err := sp.state.AcceptSuggestion(id, cat); err == nil {
			sp.mu.Lock()
			delete(sp.choice, id)
			sp.mu.Unlock()
		}
	}
	row.reject.OnTapped = func() {
		_ = sp.state.RejectSuggestion(id)
	}
}

func (sp *SuggestionPanel) onRejectAll() {
	sp.mu.Lock()
	ids := make([]string, len(sp.suggestions))
	for i, l := range sp.suggestions {
		ids[i] = l.ID
	}
	sp.mu.Unlock()
	for _, id := range ids {
		if err := sp.state.RejectSuggestion(id); err != nil {
			return
		}
	}
}
