package panels

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"image-annotator/internal/annotate"
	"image-annotator/internal/app"
	"image-annotator/internal/detect"
	"image-annotator/internal/imagesource"
)

var modeNames = []string{"Free", "Text", "Image"}

var modeValues = map[string]detect.PromptMode{
	"Free":  detect.ModeFree,
	"Text":  detect.ModeText,
	"Image": detect.ModeImage,
}

func modeName(m detect.PromptMode) string {
	for name, v := range modeValues {
		if v == m {
			return name
		}
	}
	return "Free"
}

// PromptPanel edits the detection prompt of the current image and runs
// detection.
type PromptPanel struct {
	state     *app.State
	ctrl      *annotate.Controller
	window    fyne.Window
	container fyne.CanvasObject

	modeRadio    *widget.RadioGroup
	textEntry    *widget.Entry
	textBox      fyne.CanvasObject
	regionButton *widget.Button
	clearButton  *widget.Button
	regionLabel  *widget.Label
	preview      *fyne.Container
	imageBox     fyne.CanvasObject
	runButton    *widget.Button
	cancelButton *widget.Button
	progress     *widget.ProgressBarInfinite
	summaryLabel *widget.Label

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewPromptPanel creates a prompt panel.
func NewPromptPanel(state *app.State, ctrl *annotate.Controller) *PromptPanel {
	pp := &PromptPanel{state: state, ctrl: ctrl}

	pp.modeRadio = widget.NewRadioGroup(modeNames, func(name string) {
		if m, ok := modeValues[name]; ok && state.Prompt().Mode != m {
			state.SetPromptMode(m)
		}
	})
	pp.modeRadio.Horizontal = true
	pp.modeRadio.Required = true

	pp.textEntry = widget.NewEntry()
	pp.textEntry.SetPlaceHolder("e.g. red car, license plate")
	pp.textEntry.OnChanged = func(text string) {
		if state.Prompt().Text != text {
			state.SetPromptText(text)
		}
	}
	pp.textEntry.OnSubmitted = func(string) { pp.onRun() }
	pp.textBox = container.NewVBox(widget.NewLabel("Describe what to find:"), pp.textEntry)

	pp.regionLabel = widget.NewLabel("No reference region")
	pp.regionButton = widget.NewButton("Select Region", pp.onSelectRegion)
	pp.clearButton = widget.NewButton("Clear", state.ClearReference)
	pp.preview = container.NewCenter()
	pp.imageBox = container.NewVBox(
		widget.NewLabel("Draw a box around an example object:"),
		container.NewHBox(pp.regionButton, pp.clearButton),
		pp.regionLabel,
		pp.preview,
	)

	pp.runButton = widget.NewButton("Run Detection", pp.onRun)
	pp.runButton.Importance = widget.HighImportance
	pp.cancelButton = widget.NewButton("Cancel", pp.onCancel)
	pp.cancelButton.Hide()
	pp.progress = widget.NewProgressBarInfinite()
	pp.progress.Stop()
	pp.progress.Hide()
	pp.summaryLabel = widget.NewLabel("")
	pp.summaryLabel.Wrapping = fyne.TextWrapWord

	pp.container = container.NewVBox(
		widget.NewLabel("Prompt mode"),
		pp.modeRadio,
		pp.textBox,
		pp.imageBox,
		widget.NewSeparator(),
		container.NewHBox(pp.runButton, pp.cancelButton),
		pp.progress,
		pp.summaryLabel,
	)

	pp.showPrompt(state.Prompt())
	pp.setupEventHandlers()
	return pp
}

// Container returns the panel container.
func (pp *PromptPanel) Container() fyne.CanvasObject {
	return pp.container
}

// SetWindow sets the parent window for dialogs.
func (pp *PromptPanel) SetWindow(w fyne.Window) {
	pp.window = w
}

func (pp *PromptPanel) setupEventHandlers() {
	pp.state.On(app.EventPromptChanged, func(data any) {
		if p, ok := data.(app.Prompt); ok {
			pp.showPrompt(p)
		}
	})
	pp.state.On(app.EventImageSelected, func(any) {
		pp.summaryLabel.SetText("")
	})
	pp.state.On(app.EventDetectionStarted, func(any) {
		pp.setRunning(true)
	})
	pp.state.On(app.EventDetectionFinished, func(data any) {
		if sum, ok := data.(detect.Summary); ok {
			text := sum.String()
			if sum.Count > 1 {
				text += fmt.Sprintf(" (sd %.0f%%)", sum.StdDev*100)
			}
			pp.summaryLabel.SetText(text)
		}
	})
}

func (pp *PromptPanel) showPrompt(p app.Prompt) {
	pp.modeRadio.SetSelected(modeName(p.Mode))
	if pp.textEntry.Text != p.Text {
		pp.textEntry.SetText(p.Text)
	}

	switch p.Mode {
	case detect.ModeText:
		pp.textBox.Show()
		pp.imageBox.Hide()
	case detect.ModeImage:
		pp.textBox.Hide()
		pp.imageBox.Show()
	default:
		pp.textBox.Hide()
		pp.imageBox.Hide()
	}

	pp.preview.Objects = nil
	if p.Reference == nil {
		pp.regionLabel.SetText("No reference region")
		pp.clearButton.Disable()
	} else {
		r := p.Reference.ImageRect()
		pp.regionLabel.SetText(fmt.Sprintf("X:%d Y:%d W:%d H:%d", r.Min.X, r.Min.Y, r.Dx(), r.Dy()))
		pp.clearButton.Enable()
		if p.ReferenceURL != "" {
			if data, err := imagesource.DecodeDataURL(p.ReferenceURL); err == nil {
				img := canvas.NewImageFromReader(bytes.NewReader(data), "reference.png")
				img.FillMode = canvas.ImageFillContain
				img.SetMinSize(fyne.NewSize(120, 90))
				pp.preview.Objects = []fyne.CanvasObject{img}
			}
		}
	}
	pp.preview.Refresh()
}

func (pp *PromptPanel) onSelectRegion() {
	if err := pp.ctrl.EnterRegionMode(); err != nil {
		pp.showError(err)
		return
	}
	pp.state.Emit(app.EventStatus, "drag a box around the reference object, Esc to cancel")
}

func (pp *PromptPanel) onRun() {
	pp.mu.Lock()
	if pp.cancel != nil {
		pp.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	pp.cancel = cancel
	pp.mu.Unlock()

	pp.summaryLabel.SetText("")
	go func() {
		defer func() {
			pp.mu.Lock()
			pp.cancel = nil
			pp.mu.Unlock()
			cancel()
			pp.setRunning(false)
		}()
		if _, err := pp.state.RunDetection(ctx); err != nil && ctx.Err() == nil {
			pp.summaryLabel.SetText(err.Error())
		}
	}()
}

func (pp *PromptPanel) onCancel() {
	pp.mu.Lock()
	cancel := pp.cancel
	pp.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (pp *PromptPanel) setRunning(running bool) {
	if running {
		pp.runButton.Disable()
		pp.cancelButton.Show()
		pp.progress.Show()
		pp.progress.Start()
		return
	}
	pp.runButton.Enable()
	pp.cancelButton.Hide()
	pp.progress.Stop()
	pp.progress.Hide()
}

func (pp *PromptPanel) showError(err error) {
	if pp.window != nil {
		dialog.ShowError(err, pp.window)
		return
	}
	pp.summaryLabel.SetText(err.Error())
}
