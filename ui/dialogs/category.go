// Package dialogs provides application dialogs.
package dialogs

import (
	"fmt"
	"slices"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"image-annotator/internal/annotate"
)

// CategoryDialog asks for the category of a freshly drawn shape. Picking an
// existing category or typing a new one confirms the shape; closing the
// dialog discards it.
type CategoryDialog struct {
	ctrl       *annotate.Controller
	window     fyne.Window
	categories []string

	entry *widget.SelectEntry
	err   *widget.Label
	dlg   dialog.Dialog
}

// NewCategoryDialog creates a category dialog for the pending shape of ctrl.
func NewCategoryDialog(ctrl *annotate.Controller, categories []string, window fyne.Window) *CategoryDialog {
	return &CategoryDialog{
		ctrl:       ctrl,
		window:     window,
		categories: categories,
	}
}

// Show displays the dialog.
func (d *CategoryDialog) Show(p annotate.Pending) {
	d.entry = widget.NewSelectEntry(d.categories)
	d.entry.SetPlaceHolder("Category")
	d.entry.OnSubmitted = func(string) { d.confirm() }
	if len(d.categories) > 0 {
		d.entry.SetText(d.categories[0])
	}

	d.err = widget.NewLabel("")
	d.err.Importance = widget.DangerImportance
	d.err.Hide()

	bounds := p.Shape.Bounds()
	info := widget.NewLabel(fmt.Sprintf("New %s at %.0f, %.0f", p.Shape.Kind(), bounds.X, bounds.Y))

	okBtn := widget.NewButton("Add Label", d.confirm)
	okBtn.Importance = widget.HighImportance
	cancelBtn := widget.NewButton("Cancel", d.dismiss)

	content := container.NewVBox(
		info,
		d.entry,
		d.err,
		container.NewHBox(cancelBtn, okBtn),
	)

	d.dlg = dialog.NewCustomWithoutButtons("Choose Category", content, d.window)
	d.dlg.SetOnClosed(func() {
		// No-op once the shape was confirmed.
		d.ctrl.DismissCategory()
	})
	d.dlg.Resize(fyne.NewSize(320, 0))
	d.dlg.Show()
	d.window.Canvas().Focus(d.entry)
}

func (d *CategoryDialog) confirm() {
	name := strings.TrimSpace(d.entry.Text)
	if err := d.ctrl.ConfirmCategory(name); err != nil {
		d.err.SetText(err.Error())
		d.err.Show()
		return
	}
	if !slices.Contains(d.categories, name) {
		_ = d.ctrl.ProposeCategory(name)
	}
	d.dlg.Hide()
}

func (d *CategoryDialog) dismiss() {
	d.ctrl.DismissCategory()
	d.dlg.Hide()
}
