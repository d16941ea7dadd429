package dialogs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"image-annotator/internal/app"
	"image-annotator/internal/export"
	"image-annotator/ui/prefs"
)

// ExportDialog configures and runs a YOLO export of the current dataset,
// then offers the archive for saving.
type ExportDialog struct {
	state  *app.State
	prefs  *prefs.Prefs
	window fyne.Window

	formatRadio  *widget.RadioGroup
	unknownCheck *widget.Check
	summary      *widget.Label
}

// NewExportDialog creates an export dialog. Defaults come from p, which may
// be nil.
func NewExportDialog(state *app.State, p *prefs.Prefs, window fyne.Window) *ExportDialog {
	return &ExportDialog{state: state, prefs: p, window: window}
}

// Show displays the dialog.
func (d *ExportDialog) Show(defaults export.Options) {
	format := string(defaults.Format)
	include := defaults.IncludeUnknown
	if d.prefs != nil {
		format = d.prefs.String(prefs.KeyExportFormat, format)
		include = d.prefs.Bool(prefs.KeyExportUnknown, include)
	}
	if f, err := export.ParseFormat(format); err == nil {
		format = string(f)
	} else {
		format = string(export.FormatXYWH)
	}

	d.formatRadio = widget.NewRadioGroup([]string{string(export.FormatXYWH), string(export.FormatXYXY)}, nil)
	d.formatRadio.Horizontal = true
	d.formatRadio.Required = true
	d.formatRadio.SetSelected(format)

	d.unknownCheck = widget.NewCheck("Include unknown labels", nil)
	d.unknownCheck.SetChecked(include)

	d.summary = widget.NewLabel("")
	d.summary.Wrapping = fyne.TextWrapWord
	if stats, err := d.state.Stats(); err == nil {
		d.summary.SetText(fmt.Sprintf("%d images, %d labels (%d unknown, %d pending suggestions)",
			stats.Images, stats.Labels, stats.Unknown, stats.Suggestions))
	}

	hint := widget.NewLabel("xywh: center x, center y, width, height\nxyxy: top-left and bottom-right corners")
	hint.TextStyle = fyne.TextStyle{Italic: true}

	form := widget.NewForm(
		widget.NewFormItem("Format", d.formatRadio),
		widget.NewFormItem("", d.unknownCheck),
	)

	content := container.NewVBox(d.summary, form, hint)
	dialog.ShowCustomConfirm("Export YOLO", "Export", "Cancel", content, func(ok bool) {
		if !ok {
			return
		}
		opts := export.Options{
			Format:         export.Format(d.formatRadio.Selected),
			IncludeUnknown: d.unknownCheck.Checked,
			Logger:         defaults.Logger,
		}
		if d.prefs != nil {
			d.prefs.SetString(prefs.KeyExportFormat, string(opts.Format))
			d.prefs.SetBool(prefs.KeyExportUnknown, opts.IncludeUnknown)
		}
		d.run(opts)
	}, d.window)
}

func (d *ExportDialog) run(opts export.Options) {
	ctx, cancel := context.WithCancel(context.Background())

	bar := widget.NewProgressBarInfinite()
	progress := dialog.NewCustom("Exporting", "Cancel", container.NewVBox(
		widget.NewLabel("Preparing YOLO archive..."),
		bar,
	), d.window)
	progress.SetOnClosed(cancel)
	progress.Show()

	go func() {
		defer cancel()
		res, name, err := d.state.Export(ctx, opts)
		canceled := ctx.Err() != nil
		progress.Hide()
		if err != nil {
			if !canceled {
				dialog.ShowError(err, d.window)
			}
			return
		}
		d.save(res, name)
	}()
}

func (d *ExportDialog) save(res export.Result, name string) {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, d.window)
			return
		}
		if writer == nil {
			return
		}
		defer writer.Close()
		if _, err := writer.Write(res.Data); err != nil {
			dialog.ShowError(fmt.Errorf("failed to write archive: %w", err), d.window)
			return
		}
		if d.prefs != nil {
			d.prefs.SetString(prefs.KeyLastExportDir, filepath.Dir(writer.URI().Path()))
		}
		d.state.Emit(app.EventStatus, fmt.Sprintf("Saved %s (%d files, %d boxes, %d skipped)",
			writer.URI().Name(), res.Files, res.Boxes, res.Skipped))
	}, d.window)
	fd.SetFileName(name)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".zip"}))
	if loc := d.lastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// lastDir returns the last export directory as a ListableURI, or nil.
func (d *ExportDialog) lastDir() fyne.ListableURI {
	if d.prefs == nil {
		return nil
	}
	path := d.prefs.String(prefs.KeyLastExportDir, "")
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}
