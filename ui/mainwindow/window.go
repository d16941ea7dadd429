// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"image-annotator/internal/annotate"
	"image-annotator/internal/app"
	"image-annotator/internal/config"
	"image-annotator/internal/dataset"
	"image-annotator/internal/detect"
	"image-annotator/internal/export"
	"image-annotator/internal/imagesource"
	"image-annotator/internal/label"
	"image-annotator/internal/logging"
	"image-annotator/internal/render"
	"image-annotator/internal/version"
	"image-annotator/pkg/colorutil"
	"image-annotator/pkg/geometry"
	"image-annotator/ui/canvas"
	"image-annotator/ui/dialogs"
	"image-annotator/ui/panels"
	"image-annotator/ui/prefs"
)

var toolNames = []string{"Select", "Rect", "Polygon", "Point", "Move"}

var toolValues = map[string]annotate.Tool{
	"Select":  annotate.ToolSelect,
	"Rect":    annotate.ToolRect,
	"Polygon": annotate.ToolPolygon,
	"Point":   annotate.ToolPoint,
	"Move":    annotate.ToolMove,
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Options configures the main window. Nil fields take defaults.
type Options struct {
	Config *config.Config
	Prefs  *prefs.Prefs
	Colors *colorutil.Assigner
	Loader *imagesource.Loader
	Logger *slog.Logger
}

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app    fyne.App
	state  *app.State
	cfg    config.Config
	prefs  *prefs.Prefs
	colors *colorutil.Assigner
	loader *imagesource.Loader
	log    *slog.Logger

	ctrl       *annotate.Controller
	canvas     *canvas.AnnotationCanvas
	imagePanel *panels.ImagePanel
	sidePanel  *panels.SidePanel
	statusBar  *widget.Label
	zoomLabel  *widget.Label
	toolRadio  *widget.RadioGroup

	mu           sync.Mutex
	loadCancel   context.CancelFunc
	loadingID    string
	lastSelected string
}

// New creates a new main window.
func New(fyneApp fyne.App, state *app.State, opts Options) *MainWindow {
	cfg := config.Default()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	log := logging.OrNop(opts.Logger).With("component", "window")
	colors := opts.Colors
	if colors == nil {
		colors = colorutil.NewAssigner(colorutil.StrategyHash, nil)
	}
	loader := opts.Loader
	if loader == nil {
		loader = imagesource.NewLoader(imagesource.Options{
			CacheTTL:    cfg.Images.CacheTTL,
			HTTPTimeout: cfg.Images.HTTPTimeout,
			MaxBytes:    cfg.Images.MaxBytes,
			Logger:      opts.Logger,
		})
	}

	mw := &MainWindow{
		Window: fyneApp.NewWindow(version.AppName),
		app:    fyneApp,
		state:  state,
		cfg:    cfg,
		prefs:  opts.Prefs,
		colors: colors,
		loader: loader,
		log:    log,
	}

	mw.setupUI(opts.Logger)
	mw.setupMenus()
	mw.setupKeys()
	mw.setupEventHandlers()

	width, height := float32(1280), float32(800)
	if mw.prefs != nil {
		width = float32(mw.prefs.FloatWithFallback(prefs.KeyWindowWidth, float64(width)))
		height = float32(mw.prefs.FloatWithFallback(prefs.KeyWindowHeight, float64(height)))
	}
	mw.Resize(fyne.NewSize(width, height))
	mw.SetCloseIntercept(func() {
		mw.SavePreferences()
		mw.Close()
	})
	return mw
}

// Controller returns the canvas controller.
func (mw *MainWindow) Controller() *annotate.Controller {
	return mw.ctrl
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI(logger *slog.Logger) {
	cv := mw.cfg.Canvas
	mw.ctrl = annotate.NewController(mw.state, annotate.Options{
		Viewport: annotate.ViewportOptions{
			MinScale:  cv.MinScale,
			MaxScale:  cv.MaxScale,
			ZoomStep:  cv.ZoomStep,
			FitMargin: cv.FitMargin,
		},
		MinRectSize:    cv.MinRectSize,
		MinRegionSize:  cv.MinRegionSize,
		PointHitRadius: cv.PointHitRadius,
		DimOpacity:     cv.DimOpacity,
		Logger:         logger,
	})
	ro := render.DefaultOptions()
	ro.Colors = mw.colors
	ro.PointRadius = cv.PointRadius
	mw.canvas = canvas.NewAnnotationCanvas(mw.ctrl, render.New(ro))

	mw.ctrl.OnShapeReady(mw.onShapeReady)
	mw.ctrl.OnRegionSelected(mw.onRegionSelected)
	mw.canvas.OnViewChange(mw.onViewChange)

	mw.imagePanel = panels.NewImagePanel(mw.state)
	mw.imagePanel.SetWindow(mw.Window)
	mw.sidePanel = panels.NewSidePanel(mw.state, mw.ctrl, mw.colors)
	mw.sidePanel.SetWindow(mw.Window)

	mw.statusBar = widget.NewLabel("Ready")
	mw.statusBar.Truncation = fyne.TextTruncateEllipsis
	mw.zoomLabel = widget.NewLabel("")

	canvasArea := container.NewBorder(mw.createToolbar(), nil, nil, nil, mw.canvas)

	right := container.NewHSplit(canvasArea, mw.sidePanel.Container())
	right.SetOffset(0.72)
	split := container.NewHSplit(mw.imagePanel.Container(), right)
	split.SetOffset(0.2)

	content := container.NewBorder(
		nil,
		container.NewPadded(container.NewBorder(nil, nil, nil, mw.zoomLabel, mw.statusBar)),
		nil,
		nil,
		split,
	)
	mw.SetContent(content)
}

// createToolbar creates the tool selector and the zoom controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	mw.toolRadio = widget.NewRadioGroup(toolNames, mw.onToolSelected)
	mw.toolRadio.Horizontal = true
	mw.toolRadio.Required = true
	mw.toolRadio.SetSelected("Select")

	actions := widget.NewToolbar(
		widget.NewToolbarAction(theme.ZoomOutIcon(), mw.ctrl.ZoomOut),
		widget.NewToolbarAction(theme.ZoomInIcon(), mw.ctrl.ZoomIn),
		widget.NewToolbarAction(theme.ZoomFitIcon(), mw.ctrl.ResetView),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DeleteIcon(), func() { mw.ctrl.DeleteSelected() }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DownloadIcon(), mw.onExport),
	)

	return container.NewHBox(
		widget.NewLabel("Tool:"),
		mw.toolRadio,
		actions,
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	quit := fyne.NewMenuItem("Quit", func() {
		mw.SavePreferences()
		mw.app.Quit()
	})
	quit.IsQuit = true

	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Add Image...", mw.onAddImage),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export YOLO...", mw.onExport),
		fyne.NewMenuItemSeparator(),
		quit,
	)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Delete Selected", func() { mw.ctrl.DeleteSelected() }),
		fyne.NewMenuItem("Complete Polygon", func() { mw.ctrl.CompletePolygon() }),
		fyne.NewMenuItem("Cancel Drawing", mw.ctrl.Cancel),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", mw.ctrl.ZoomIn),
		fyne.NewMenuItem("Zoom Out", mw.ctrl.ZoomOut),
		fyne.NewMenuItem("Fit to Window", mw.ctrl.ResetView),
	)

	detectMenu := fyne.NewMenu("Detect",
		fyne.NewMenuItem("Select Reference Region", mw.onSelectRegion),
		fyne.NewMenuItem("Run Detection", mw.onRunDetection),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Run OSD on Dataset", mw.onRunOSD),
		fyne.NewMenuItem("Mark Image Reviewed", func() { _ = mw.state.MarkReviewed() }),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("Keyboard Shortcuts", mw.onShortcuts),
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, viewMenu, detectMenu, helpMenu))
}

// setupKeys routes key presses to the canvas while no text field has focus.
func (mw *MainWindow) setupKeys() {
	dc, ok := mw.Canvas().(desktop.Canvas)
	if !ok {
		return
	}
	dc.SetOnKeyDown(func(ev *fyne.KeyEvent) {
		if mw.Canvas().Focused() != nil {
			return
		}
		if mw.canvas.KeyDown(ev) {
			return
		}
		mw.onShortcutKey(ev.Name)
	})
	dc.SetOnKeyUp(func(ev *fyne.KeyEvent) {
		mw.canvas.KeyUp(ev)
	})
}

func (mw *MainWindow) onShortcutKey(name fyne.KeyName) {
	switch name {
	case fyne.KeyV:
		mw.selectTool(annotate.ToolSelect)
	case fyne.KeyR:
		mw.selectTool(annotate.ToolRect)
	case fyne.KeyP:
		mw.selectTool(annotate.ToolPolygon)
	case fyne.KeyO:
		mw.selectTool(annotate.ToolPoint)
	case fyne.KeyH:
		mw.selectTool(annotate.ToolMove)
	case fyne.KeyEqual:
		mw.ctrl.ZoomIn()
	case fyne.KeyMinus:
		mw.ctrl.ZoomOut()
	case fyne.Key0:
		mw.ctrl.ResetView()
	}
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventDatasetSelected, func(data any) {
		d, ok := data.(dataset.Dataset)
		if !ok {
			return
		}
		mw.SetTitle(version.AppName + " - " + d.Name)
		if mw.prefs != nil {
			mw.prefs.SetString(prefs.KeyLastDataset, d.ID)
		}
	})

	mw.state.On(app.EventImageSelected, func(data any) {
		img, _ := data.(dataset.Image)
		if img.ID == "" {
			mw.unloadImage()
			return
		}
		mw.loadImage(img)
	})

	mw.state.On(app.EventLabelsChanged, func(data any) {
		labels, _ := data.([]label.Label)
		mw.ctrl.SetLabels(labels)
	})

	mw.state.On(app.EventPromptChanged, func(data any) {
		if p, ok := data.(app.Prompt); ok && mw.prefs != nil {
			mw.prefs.SetString(prefs.KeyPromptMode, string(p.Mode))
		}
	})

	mw.state.On(app.EventDetectionStarted, func(data any) {
		mode, _ := data.(detect.PromptMode)
		mw.updateStatus(fmt.Sprintf("Detecting (%s prompt)...", mode))
	})

	mw.state.On(app.EventOSDStatusChanged, func(data any) {
		if status, ok := data.(dataset.OSDStatus); ok && status == dataset.StatusRunning {
			mw.updateStatus("Running open-set detection...")
		}
	})

	mw.state.On(app.EventStatus, func(data any) {
		if text, ok := data.(string); ok {
			mw.updateStatus(text)
		}
	})

	mw.state.On(app.EventError, func(data any) {
		if err, ok := data.(error); ok {
			mw.updateStatus("Error: " + err.Error())
		}
	})
}

// RestoreSession selects the last used dataset, or the first one, and the
// last prompt mode.
func (mw *MainWindow) RestoreSession() {
	if mw.prefs != nil {
		if m, err := detect.ParseMode(mw.prefs.String(prefs.KeyPromptMode, "")); err == nil && m != detect.ModeImage {
			mw.state.SetPromptMode(m)
		}
	}

	datasets := mw.state.Datasets()
	if len(datasets) == 0 {
		return
	}
	id := datasets[0].ID
	if mw.prefs != nil {
		last := mw.prefs.String(prefs.KeyLastDataset, "")
		for _, d := range datasets {
			if d.ID == last {
				id = last
				break
			}
		}
	}
	_ = mw.state.SelectDataset(id)
}

// SavePreferences stores the window size and writes the preferences file.
func (mw *MainWindow) SavePreferences() {
	if mw.prefs == nil {
		return
	}
	size := mw.Canvas().Size()
	if size.Width > 0 && size.Height > 0 {
		mw.prefs.SetFloat(prefs.KeyWindowWidth, float64(size.Width))
		mw.prefs.SetFloat(prefs.KeyWindowHeight, float64(size.Height))
	}
	if err := mw.prefs.Save(); err != nil {
		mw.log.Warn("failed to save preferences", "path", mw.prefs.Path(), "error", err)
	}
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) onViewChange() {
	tool := mw.ctrl.Tool()
	if name := titleOf(tool); mw.toolRadio.Selected != name {
		mw.toolRadio.SetSelected(name)
	}
	mw.zoomLabel.SetText(fmt.Sprintf("%d%%", int(mw.ctrl.Scale()*100+0.5)))

	sel := mw.ctrl.Selected()
	mw.mu.Lock()
	changed := sel != mw.lastSelected
	mw.lastSelected = sel
	mw.mu.Unlock()
	if changed {
		mw.sidePanel.SyncSelection(sel)
	}
}

func titleOf(t annotate.Tool) string {
	for name, v := range toolValues {
		if v == t {
			return name
		}
	}
	return "Select"
}

func (mw *MainWindow) onToolSelected(name string) {
	if t, ok := toolValues[name]; ok {
		mw.selectTool(t)
	}
}

func (mw *MainWindow) selectTool(t annotate.Tool) {
	if err := mw.ctrl.SetTool(t); err != nil {
		switch {
		case errors.Is(err, annotate.ErrImageNotReady):
			mw.updateStatus("Load an image before drawing")
		case errors.Is(err, annotate.ErrRegionModeActive):
			mw.updateStatus("Finish or cancel the region selection first (Esc)")
		default:
			mw.updateStatus(err.Error())
		}
		if name := titleOf(mw.ctrl.Tool()); mw.toolRadio.Selected != name {
			mw.toolRadio.SetSelected(name)
		}
		return
	}
	if name := titleOf(t); mw.toolRadio.Selected != name {
		mw.toolRadio.SetSelected(name)
	}
}

func (mw *MainWindow) onShapeReady(p annotate.Pending) {
	dialogs.NewCategoryDialog(mw.ctrl, mw.state.Categories(), mw.Window).Show(p)
}

func (mw *MainWindow) onRegionSelected(r geometry.Rect) {
	mw.state.SetReference(r)
	mw.updateStatus(fmt.Sprintf("Reference region %.0fx%.0f selected", r.Width, r.Height))
}

// loadImage fetches the pixels of img in the background. A newer selection
// supersedes a load in flight.
func (mw *MainWindow) loadImage(img dataset.Image) {
	ctx, cancel := context.WithCancel(context.Background())
	mw.mu.Lock()
	if mw.loadCancel != nil {
		mw.loadCancel()
	}
	mw.loadCancel = cancel
	mw.loadingID = img.ID
	mw.mu.Unlock()

	mw.ctrl.ImageLoading()
	mw.canvas.SetImage(nil)
	mw.updateStatus("Loading " + img.FileName + "...")

	go func() {
		defer cancel()
		loaded, err := mw.loader.Load(ctx, img.URL)

		mw.mu.Lock()
		current := mw.loadingID == img.ID && ctx.Err() == nil
		mw.mu.Unlock()
		if !current {
			return
		}

		if err != nil {
			mw.log.Warn("image load failed", "image", img.ID, "error", err)
			mw.ctrl.ImageFailed(err)
			mw.updateStatus(fmt.Sprintf("Failed to load %s: %v", img.FileName, err))
			return
		}
		w, h := loaded.Size()
		mw.canvas.SetImage(loaded.Image)
		if err := mw.ctrl.ImageLoaded(float64(w), float64(h)); err != nil {
			mw.updateStatus(fmt.Sprintf("Failed to display %s: %v", img.FileName, err))
			return
		}
		if err := mw.state.ImageLoaded(loaded); err != nil {
			mw.log.Debug("image changed during load", "image", img.ID, "error", err)
		}
		mw.updateStatus(fmt.Sprintf("%s  %dx%d %s", img.FileName, w, h, loaded.Format))
	}()
}

func (mw *MainWindow) unloadImage() {
	mw.mu.Lock()
	if mw.loadCancel != nil {
		mw.loadCancel()
		mw.loadCancel = nil
	}
	mw.loadingID = ""
	mw.mu.Unlock()
	mw.ctrl.ImageLoading()
	mw.ctrl.SetLabels(nil)
	mw.canvas.SetImage(nil)
}

// Menu action handlers

func (mw *MainWindow) onAddImage() {
	if _, ok := mw.state.Dataset(); !ok {
		dialog.ShowError(app.ErrNoDataset, mw.Window)
		return
	}
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		if reader == nil {
			return
		}
		reader.Close()
		uri := reader.URI()
		img, err := mw.state.AddImage(filepath.Base(uri.Path()), uri.String())
		if err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		_ = mw.state.SelectImage(img.ID)
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(imageExtensions))
	fd.Show()
}

func (mw *MainWindow) onExport() {
	if _, ok := mw.state.Dataset(); !ok {
		dialog.ShowError(app.ErrNoDataset, mw.Window)
		return
	}
	format, err := export.ParseFormat(mw.cfg.Export.Format)
	if err != nil {
		format = export.FormatXYWH
	}
	dialogs.NewExportDialog(mw.state, mw.prefs, mw.Window).Show(export.Options{
		Format:         format,
		IncludeUnknown: mw.cfg.Export.IncludeUnknown,
		Logger:         mw.log,
	})
}

func (mw *MainWindow) onSelectRegion() {
	if err := mw.ctrl.EnterRegionMode(); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.updateStatus("Drag a box around the reference object, Esc to cancel")
}

func (mw *MainWindow) onRunDetection() {
	go func() {
		_, _ = mw.state.RunDetection(context.Background())
	}()
}

func (mw *MainWindow) onRunOSD() {
	go func() {
		_, _ = mw.state.RunOSD(context.Background())
	}()
}

func (mw *MainWindow) onShortcuts() {
	dialog.ShowInformation("Keyboard Shortcuts",
		"V  select tool\n"+
			"R  rectangle tool\n"+
			"P  polygon tool\n"+
			"O  point tool\n"+
			"H  move tool\n"+
			"Space + drag  pan\n"+
			"Middle drag  pan\n"+
			"Wheel  zoom at pointer\n"+
			"= / -  zoom in / out\n"+
			"0  fit to window\n"+
			"Enter  complete polygon\n"+
			"Double-click  complete polygon, or delete in select tool\n"+
			"Delete / Backspace  delete selected label\n"+
			"Esc  cancel drawing or region selection",
		mw.Window)
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+version.AppName,
		fmt.Sprintf("%s v%s\n\n"+
			"Image annotation with rectangles, polygons and points,\n"+
			"AI suggestions and YOLO export.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			version.AppName, version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}
