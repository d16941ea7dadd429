package panels

import (
	"context"
	"fmt"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"image-annotator/internal/app"
	"image-annotator/internal/dataset"
)

var filterNames = []string{"All", "Unknown", "Clean"}

var filterValues = map[string]dataset.Filter{
	"All":     dataset.FilterAll,
	"Unknown": dataset.FilterUnknown,
	"Clean":   dataset.FilterClean,
}

// ImagePanel picks the dataset and the image to annotate, filters the image
// list by OSD flag and runs the dataset-wide OSD pass.
type ImagePanel struct {
	state     *app.State
	window    fyne.Window
	container fyne.CanvasObject

	datasetSelect *widget.Select
	infoLabel     *widget.Label
	osdLabel      *widget.Label
	filterRadio   *widget.RadioGroup
	list          *widget.List
	osdButton     *widget.Button
	reviewButton  *widget.Button

	mu       sync.Mutex
	datasets []dataset.Dataset
	images   []dataset.Image
	current  string
}

// NewImagePanel creates an image panel.
func NewImagePanel(state *app.State) *ImagePanel {
	ip := &ImagePanel{state: state}

	ip.infoLabel = widget.NewLabel("")
	ip.infoLabel.Wrapping = fyne.TextWrapWord
	ip.osdLabel = widget.NewLabel("")

	ip.datasetSelect = widget.NewSelect(nil, ip.onDatasetSelected)
	ip.datasetSelect.PlaceHolder = "Select a dataset"
	newButton := widget.NewButton("New...", ip.onNewDataset)

	ip.filterRadio = widget.NewRadioGroup(filterNames, func(name string) {
		if f, ok := filterValues[name]; ok {
			state.SetFilter(f)
		}
	})
	ip.filterRadio.Horizontal = true
	ip.filterRadio.Required = true
	ip.filterRadio.SetSelected("All")

	ip.list = widget.NewList(
		func() int {
			ip.mu.Lock()
			defer ip.mu.Unlock()
			return len(ip.images)
		},
		func() fyne.CanvasObject {
			flag := widget.NewLabel("")
			flag.TextStyle = fyne.TextStyle{Italic: true}
			return container.NewBorder(nil, nil, nil, flag, widget.NewLabel(""))
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			ip.mu.Lock()
			if id >= len(ip.images) {
				ip.mu.Unlock()
				return
			}
			img := ip.images[id]
			ip.mu.Unlock()
			row := obj.(*fyne.Container)
			row.Objects[0].(*widget.Label).SetText(imageRowText(img))
			row.Objects[1].(*widget.Label).SetText(flagText(img.OSDFlag))
		},
	)
	ip.list.OnSelected = ip.onImageSelected

	ip.osdButton = widget.NewButton("Run OSD", ip.onRunOSD)
	ip.reviewButton = widget.NewButton("Mark Reviewed", func() {
		_ = state.MarkReviewed()
	})
	ip.reviewButton.Disable()

	top := container.NewVBox(
		widget.NewLabel("Dataset"),
		container.NewBorder(nil, nil, nil, newButton, ip.datasetSelect),
		ip.infoLabel,
		widget.NewSeparator(),
		container.NewBorder(nil, nil, nil, ip.osdButton, ip.osdLabel),
		ip.filterRadio,
	)
	ip.container = container.NewBorder(top, ip.reviewButton, nil, nil, ip.list)

	ip.setupEventHandlers()
	ip.refreshDatasets()
	return ip
}

// Container returns the panel container.
func (ip *ImagePanel) Container() fyne.CanvasObject {
	return ip.container
}

// SetWindow sets the parent window for dialogs.
func (ip *ImagePanel) SetWindow(w fyne.Window) {
	ip.window = w
}

func (ip *ImagePanel) setupEventHandlers() {
	ip.state.On(app.EventDatasetsChanged, func(any) {
		ip.refreshDatasets()
	})
	ip.state.On(app.EventDatasetSelected, func(data any) {
		d, ok := data.(dataset.Dataset)
		if !ok {
			return
		}
		ip.showDataset(d)
		if ip.datasetSelect.Selected != d.Name {
			ip.datasetSelect.SetSelected(d.Name)
		}
	})
	ip.state.On(app.EventImagesChanged, func(data any) {
		images, _ := data.([]dataset.Image)
		ip.mu.Lock()
		ip.images = images
		ip.mu.Unlock()
		ip.list.Refresh()
		ip.syncSelection()
		ip.refreshInfo()
	})
	ip.state.On(app.EventImageSelected, func(data any) {
		img, _ := data.(dataset.Image)
		ip.mu.Lock()
		ip.current = img.ID
		ip.mu.Unlock()
		if img.ID == "" {
			ip.list.UnselectAll()
			ip.reviewButton.Disable()
			return
		}
		ip.syncSelection()
		ip.reviewButton.Enable()
	})
	ip.state.On(app.EventOSDStatusChanged, func(data any) {
		if status, ok := data.(dataset.OSDStatus); ok {
			ip.showOSDStatus(status)
		}
	})
}

func (ip *ImagePanel) refreshDatasets() {
	datasets := ip.state.Datasets()
	names := make([]string, len(datasets))
	for i, d := range datasets {
		names[i] = d.Name
	}
	ip.mu.Lock()
	ip.datasets = datasets
	ip.mu.Unlock()
	ip.datasetSelect.SetOptions(names)
}

func (ip *ImagePanel) onDatasetSelected(name string) {
	ip.mu.Lock()
	var id string
	for _, d := range ip.datasets {
		if d.Name == name {
			id = d.ID
			break
		}
	}
	ip.mu.Unlock()
	if id == "" {
		return
	}
	if cur, ok := ip.state.Dataset(); ok && cur.ID == id {
		return
	}
	_ = ip.state.SelectDataset(id)
}

func (ip *ImagePanel) onImageSelected(idx widget.ListItemID) {
	ip.mu.Lock()
	if idx >= len(ip.images) {
		ip.mu.Unlock()
		return
	}
	id := ip.images[idx].ID
	same := id == ip.current
	ip.mu.Unlock()
	if !same {
		_ = ip.state.SelectImage(id)
	}
}

// syncSelection selects the current image in the list without re-selecting
// it in the state.
func (ip *ImagePanel) syncSelection() {
	ip.mu.Lock()
	idx := -1
	for i, img := range ip.images {
		if img.ID == ip.current {
			idx = i
			break
		}
	}
	ip.mu.Unlock()
	if idx >= 0 {
		ip.list.Select(idx)
	} else {
		ip.list.UnselectAll()
	}
}

func (ip *ImagePanel) showDataset(d dataset.Dataset) {
	ip.showOSDStatus(d.OSDStatus)
	ip.refreshInfo()
}

func (ip *ImagePanel) refreshInfo() {
	d, ok := ip.state.Dataset()
	if !ok {
		ip.infoLabel.SetText("")
		return
	}
	text := fmt.Sprintf("%d images, updated %s", d.ImageCount, d.UpdatedAt.Format("2006-01-02"))
	if stats, err := ip.state.Stats(); err == nil {
		text += fmt.Sprintf("\n%d labels, %d AI suggestions, %d flagged", stats.Labels, stats.Suggestions, stats.Flagged)
	}
	if d.Description != "" {
		text = d.Description + "\n" + text
	}
	ip.infoLabel.SetText(text)
}

func (ip *ImagePanel) showOSDStatus(status dataset.OSDStatus) {
	ip.osdLabel.SetText("OSD: " + string(status))
	if status == dataset.StatusRunning {
		ip.osdButton.Disable()
	} else {
		ip.osdButton.Enable()
	}
}

func (ip *ImagePanel) onRunOSD() {
	ip.osdButton.Disable()
	go func() {
		// Errors reach the status bar through EventError.
		_, _ = ip.state.RunOSD(context.Background())
		if d, ok := ip.state.Dataset(); ok {
			ip.showOSDStatus(d.OSDStatus)
		}
	}()
}

func (ip *ImagePanel) onNewDataset() {
	if ip.window == nil {
		return
	}
	name := widget.NewEntry()
	name.SetPlaceHolder("Dataset name")
	desc := widget.NewMultiLineEntry()
	desc.SetMinRowsVisible(3)
	items := []*widget.FormItem{
		widget.NewFormItem("Name", name),
		widget.NewFormItem("Description", desc),
	}
	dlg := dialog.NewForm("New Dataset", "Create", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		if _, err := ip.state.CreateDataset(name.Text, desc.Text, nil); err != nil {
			dialog.ShowError(err, ip.window)
		}
	}, ip.window)
	dlg.Resize(fyne.NewSize(360, 0))
	dlg.Show()
}
