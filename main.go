// Package main provides the entry point for the Image Annotator application.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/spf13/pflag"

	"image-annotator/internal/app"
	"image-annotator/internal/config"
	"image-annotator/internal/dataset"
	"image-annotator/internal/detect"
	"image-annotator/internal/detect/vision"
	"image-annotator/internal/imagesource"
	"image-annotator/internal/logging"
	"image-annotator/internal/version"
	"image-annotator/pkg/colorutil"
	"image-annotator/ui/mainwindow"
	"image-annotator/ui/prefs"
)

const appID = "io.github.image-annotator"

func main() {
	configPath := pflag.StringP("config", "c", "", "path to annotator.yaml")
	logLevel := pflag.String("log-level", "", "log level override (debug, info, warn, error)")
	showVersion := pflag.BoolP("version", "v", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if err := run(*configPath, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, logging.Format(cfg.Log.Format))
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	logger.Info("starting", "version", version.Version, "commit", version.GitCommit)

	appPrefs := prefs.Load()
	colors, err := newColors(cfg, appPrefs)
	if err != nil {
		return err
	}

	simulated := detect.NewSimulated(detect.SimulatedOptions{
		Delay:          cfg.Detection.Delay,
		MinConfidence:  cfg.Detection.MinConfidence,
		MaxConfidence:  cfg.Detection.MaxConfidence,
		MaxSuggestions: cfg.Detection.MaxSuggestions,
	})
	detector, closeDetector, err := vision.ForEngine(cfg.Detection.Engine, vision.Options{
		Language:  cfg.Detection.OCRLanguage,
		Threshold: cfg.Detection.MatchThreshold,
		Logger:    logger,
	}, simulated)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeDetector(); err != nil {
			logger.Warn("failed to close detector", "error", err)
		}
	}()

	store := dataset.NewStore()
	state := app.NewState(app.Options{
		Store:       store,
		Detector:    detector,
		OSD:         detect.NewSimulated(detect.SimulatedOptions{MaxSuggestions: 1}),
		OSDDelay:    cfg.Detection.OSDDelay,
		OSDRate:     cfg.Detection.OSDRate,
		ExportDelay: cfg.Export.Delay,
		Logger:      logger,
	})

	loader := imagesource.NewLoader(imagesource.Options{
		CacheTTL:    cfg.Images.CacheTTL,
		HTTPTimeout: cfg.Images.HTTPTimeout,
		MaxBytes:    cfg.Images.MaxBytes,
		Logger:      logger,
	})
	defer loader.Close()

	a := fyneapp.NewWithID(appID)
	a.Settings().SetTheme(&app.AnnotatorTheme{})

	win := mainwindow.New(a, state, mainwindow.Options{
		Config: cfg,
		Prefs:  appPrefs,
		Colors: colors,
		Loader: loader,
		Logger: logger,
	})

	go seed(state, store, cfg.Data, win, logger)

	if w := watchConfig(configPath, state, logger); w != nil {
		defer w.Stop()
	}

	win.ShowAndRun()
	return nil
}

// newColors builds the category color assigner. A strategy saved in the
// preferences wins over the configured one.
func newColors(cfg *config.Config, p *prefs.Prefs) (*colorutil.Assigner, error) {
	name := p.String(prefs.KeyColorStrategy, cfg.Colors.Strategy)
	strategy, err := colorutil.ParseStrategy(name)
	if err != nil {
		strategy, err = colorutil.ParseStrategy(cfg.Colors.Strategy)
		if err != nil {
			return nil, err
		}
	}
	return colorutil.NewAssignerFromHex(strategy, cfg.Colors.Palette, cfg.Colors.AIColor)
}

// seed fills the store with the demo datasets after the configured delay,
// the way a slow backend would answer, then restores the last session.
func seed(state *app.State, store *dataset.Store, cfg config.DataConfig, win *mainwindow.MainWindow, logger *slog.Logger) {
	time.Sleep(cfg.LoadDelay)
	if err := dataset.Seed(store, cfg.Seed); err != nil {
		logger.Error("failed to seed datasets", "error", err)
		state.Emit(app.EventError, err)
		return
	}
	state.Emit(app.EventDatasetsChanged, nil)
	win.RestoreSession()
}

// watchConfig reports edits to the configuration file. Settings are read
// once at startup, so a valid edit asks for a restart.
func watchConfig(path string, state *app.State, logger *slog.Logger) *app.FileWatcher {
	if path == "" {
		path = config.DefaultPath()
	}
	if path == "" {
		return nil
	}
	w := app.NewFileWatcher(path, 2*time.Second)
	if w == nil {
		return nil
	}
	logger.Debug("watching config", "path", w.Path())
	w.OnChange(func() {
		if _, err := config.Load(w.Path()); err != nil {
			logger.Warn("config changed but is invalid", "path", w.Path(), "error", err)
			state.Emit(app.EventError, err)
			return
		}
		logger.Info("config changed", "path", w.Path())
		state.Emit(app.EventStatus, "Configuration changed; restart to apply")
	})
	w.Start()
	return w
}
