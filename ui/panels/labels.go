package panels

import (
	"fmt"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"image-annotator/internal/annotate"
	"image-annotator/internal/app"
	"image-annotator/internal/label"
	"image-annotator/pkg/colorutil"
)

// labelRow holds the widgets of one label list row.
type labelRow struct {
	id       string
	swatch   *canvas.Rectangle
	caption  *widget.Label
	coords   *widget.Label
	category *widget.Select
	remove   *widget.Button
}

// LabelPanel lists the confirmed labels of the current image. Hovering a row
// highlights the label on the canvas and selecting a row selects it.
type LabelPanel struct {
	state     *app.State
	ctrl      *annotate.Controller
	colors    *colorutil.Assigner
	window    fyne.Window
	container fyne.CanvasObject

	list       *widget.List
	countLabel *widget.Label

	mu         sync.Mutex
	labels     []label.Label
	categories []string
	rows       map[*hoverRow]*labelRow
}

// NewLabelPanel creates a label panel.
func NewLabelPanel(state *app.State, ctrl *annotate.Controller, colors *colorutil.Assigner) *LabelPanel {
	lp := &LabelPanel{
		state:  state,
		ctrl:   ctrl,
		colors: colors,
		rows:   make(map[*hoverRow]*labelRow),
	}

	lp.countLabel = widget.NewLabel("No labels")
	lp.list = widget.NewList(lp.length, lp.createRow, lp.updateRow)
	lp.list.OnSelected = func(idx widget.ListItemID) {
		id := lp.idAt(idx)
		if id != "" && ctrl.Selected() != id {
			ctrl.Select(id)
		}
	}

	addButton := widget.NewButtonWithIcon("Category", theme.ContentAddIcon(), lp.onAddCategory)
	renameButton := widget.NewButton("Rename...", lp.onRenameCategory)

	top := container.NewBorder(nil, nil, nil, container.NewHBox(addButton, renameButton), lp.countLabel)
	lp.container = container.NewBorder(top, nil, nil, nil, lp.list)

	lp.setupEventHandlers()
	return lp
}

// Container returns the panel container.
func (lp *LabelPanel) Container() fyne.CanvasObject {
	return lp.container
}

// SetWindow sets the parent window for dialogs.
func (lp *LabelPanel) SetWindow(w fyne.Window) {
	lp.window = w
}

// SyncSelection mirrors the canvas selection into the list.
func (lp *LabelPanel) SyncSelection(id string) {
	lp.mu.Lock()
	idx := -1
	for i, l := range lp.labels {
		if l.ID == id {
			idx = i
			break
		}
	}
	lp.mu.Unlock()
	if idx >= 0 {
		lp.list.Select(idx)
	} else {
		lp.list.UnselectAll()
	}
}

func (lp *LabelPanel) setupEventHandlers() {
	lp.state.On(app.EventLabelsChanged, func(data any) {
		all, _ := data.([]label.Label)
		var confirmed []label.Label
		for _, l := range all {
			if !l.IsAISuggestion {
				confirmed = append(confirmed, l)
			}
		}
		lp.mu.Lock()
		lp.labels = confirmed
		lp.mu.Unlock()
		lp.updateCount(len(confirmed))
		lp.list.Refresh()
	})
	lp.state.On(app.EventCategoriesChanged, func(data any) {
		cats, _ := data.([]string)
		lp.mu.Lock()
		lp.categories = cats
		lp.mu.Unlock()
		lp.list.Refresh()
	})
}

func (lp *LabelPanel) updateCount(n int) {
	switch n {
	case 0:
		lp.countLabel.SetText("No labels")
	case 1:
		lp.countLabel.SetText("1 label")
	default:
		lp.countLabel.SetText(fmt.Sprintf("%d labels", n))
	}
}

func (lp *LabelPanel) length() int {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return len(lp.labels)
}

func (lp *LabelPanel) idAt(idx int) string {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if idx < 0 || idx >= len(lp.labels) {
		return ""
	}
	return lp.labels[idx].ID
}

func (lp *LabelPanel) createRow() fyne.CanvasObject {
	row := &labelRow{
		swatch:  newSwatch(colorutil.White),
		caption: widget.NewLabel(""),
		coords:  widget.NewLabel(""),
	}
	row.caption.TextStyle = fyne.TextStyle{Bold: true}
	row.coords.TextStyle = fyne.TextStyle{Monospace: true}
	row.category = widget.NewSelect(nil, nil)
	row.remove = widget.NewButtonWithIcon("", theme.DeleteIcon(), nil)
	row.remove.Importance = widget.LowImportance

	content := container.NewBorder(nil, nil,
		container.NewCenter(row.swatch),
		container.NewHBox(row.category, row.remove),
		container.NewVBox(row.caption, row.coords),
	)
	hr := newHoverRow(content)
	hr.onIn = func() {
		lp.mu.Lock()
		id := lp.rows[hr].id
		lp.mu.Unlock()
		lp.ctrl.SetHighlight(id)
	}
	hr.onOut = func() { lp.ctrl.SetHighlight("") }

	lp.mu.Lock()
	lp.rows[hr] = row
	lp.mu.Unlock()
	return hr
}

func (lp *LabelPanel) updateRow(idx widget.ListItemID, obj fyne.CanvasObject) {
	lp.mu.Lock()
	row := lp.rows[obj.(*hoverRow)]
	if row == nil || idx >= len(lp.labels) {
		lp.mu.Unlock()
		return
	}
	l := lp.labels[idx]
	cats := append([]string(nil), lp.categories...)
	row.id = l.ID
	lp.mu.Unlock()

	row.swatch.FillColor = nrgba(lp.colors.LabelColor(l.Category, l.IsAISuggestion))
	row.swatch.Refresh()
	row.caption.SetText(l.Caption())
	row.coords.SetText(l.FormatCoordinates())

	id := l.ID
	row.category.OnChanged = nil
	row.category.SetOptions(cats)
	row.category.ClearSelected()
	row.category.SetSelected(l.Category)
	row.category.OnChanged = func(cat string) {
		if cat != "" && cat != l.Category {
			_ = lp.state.SetLabelCategory(id, cat)
		}
	}
	row.remove.OnTapped = func() {
		lp.state.DeleteLabel(id)
	}
}

func (lp *LabelPanel) onAddCategory() {
	if lp.window == nil {
		return
	}
	entry := widget.NewEntry()
	entry.SetPlaceHolder("Category name")
	dialog.ShowForm("Add Category", "Add", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("Name", entry)},
		func(ok bool) {
			if !ok {
				return
			}
			if err := lp.ctrl.ProposeCategory(entry.Text); err != nil {
				dialog.ShowError(err, lp.window)
			}
		}, lp.window)
}

func (lp *LabelPanel) onRenameCategory() {
	if lp.window == nil {
		return
	}
	lp.mu.Lock()
	cats := append([]string(nil), lp.categories...)
	lp.mu.Unlock()
	if len(cats) == 0 {
		return
	}

	from := widget.NewSelect(cats, nil)
	from.SetSelected(cats[0])
	to := widget.NewEntry()
	to.SetPlaceHolder("New name")
	dialog.ShowForm("Rename Category", "Rename", "Cancel",
		[]*widget.FormItem{
			widget.NewFormItem("Category", from),
			widget.NewFormItem("New name", to),
		},
		func(ok bool) {
			if !ok {
				return
			}
			n, err := lp.state.RenameCategory(from.Selected, to.Text)
			if err != nil {
				dialog.ShowError(err, lp.window)
				return
			}
			lp.state.Emit(app.EventStatus, fmt.Sprintf("renamed %q to %q on %d labels", from.Selected, to.Text, n))
		}, lp.window)
}
