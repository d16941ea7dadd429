// Package config loads application settings from defaults, an optional YAML
// file and ANNOTATOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"image-annotator/pkg/colorutil"
)

// EnvPrefix prefixes environment overrides, e.g. ANNOTATOR_LOG_LEVEL.
const EnvPrefix = "ANNOTATOR"

// AppDirName is the directory under the user config dir.
const AppDirName = "image-annotator"

// Detection engines.
const (
	EngineSimulated = "simulated"
	EngineVision    = "vision"
)

// Config is the full application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Canvas    CanvasConfig    `mapstructure:"canvas" yaml:"canvas"`
	Colors    ColorConfig     `mapstructure:"colors" yaml:"colors"`
	Detection DetectionConfig `mapstructure:"detection" yaml:"detection"`
	Export    ExportConfig    `mapstructure:"export" yaml:"export"`
	Images    ImageConfig     `mapstructure:"images" yaml:"images"`
	Data      DataConfig      `mapstructure:"data" yaml:"data"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// CanvasConfig holds the interaction constants of the canvas.
type CanvasConfig struct {
	MinScale       float64 `mapstructure:"minscale" yaml:"minscale"`
	MaxScale       float64 `mapstructure:"maxscale" yaml:"maxscale"`
	ZoomStep       float64 `mapstructure:"zoomstep" yaml:"zoomstep"`
	FitMargin      float64 `mapstructure:"fitmargin" yaml:"fitmargin"`
	MinRectSize    float64 `mapstructure:"minrectsize" yaml:"minrectsize"`
	MinRegionSize  float64 `mapstructure:"minregionsize" yaml:"minregionsize"`
	PointHitRadius float64 `mapstructure:"pointhitradius" yaml:"pointhitradius"`
	PointRadius    float64 `mapstructure:"pointradius" yaml:"pointradius"`
	DimOpacity     float64 `mapstructure:"dimopacity" yaml:"dimopacity"`
}

// ColorConfig selects the category palette.
type ColorConfig struct {
	Strategy string   `mapstructure:"strategy" yaml:"strategy"`
	Palette  []string `mapstructure:"palette" yaml:"palette"`
	AIColor  string   `mapstructure:"aicolor" yaml:"aicolor"`
}

// DetectionConfig tunes the simulated detector and the OSD run.
type DetectionConfig struct {
	// Engine is "simulated" or "vision" (OCR and template matching).
	Engine         string        `mapstructure:"engine" yaml:"engine"`
	Delay          time.Duration `mapstructure:"delay" yaml:"delay"`
	OSDDelay       time.Duration `mapstructure:"osddelay" yaml:"osddelay"`
	MinConfidence  float64       `mapstructure:"minconfidence" yaml:"minconfidence"`
	MaxConfidence  float64       `mapstructure:"maxconfidence" yaml:"maxconfidence"`
	MaxSuggestions int           `mapstructure:"maxsuggestions" yaml:"maxsuggestions"`
	OSDRate        float64       `mapstructure:"osdrate" yaml:"osdrate"`
	OCRLanguage    string        `mapstructure:"ocrlanguage" yaml:"ocrlanguage"`
	MatchThreshold float64       `mapstructure:"matchthreshold" yaml:"matchthreshold"`
}

// ExportConfig holds YOLO export defaults.
type ExportConfig struct {
	Format         string        `mapstructure:"format" yaml:"format"`
	IncludeUnknown bool          `mapstructure:"includeunknown" yaml:"includeunknown"`
	Delay          time.Duration `mapstructure:"delay" yaml:"delay"`
}

// ImageConfig controls image loading.
type ImageConfig struct {
	CacheTTL    time.Duration `mapstructure:"cachettl" yaml:"cachettl"`
	HTTPTimeout time.Duration `mapstructure:"httptimeout" yaml:"httptimeout"`
	MaxBytes    int64         `mapstructure:"maxbytes" yaml:"maxbytes"`
}

// DataConfig controls the mock dataset generator.
type DataConfig struct {
	Seed      int64         `mapstructure:"seed" yaml:"seed"`
	LoadDelay time.Duration `mapstructure:"loaddelay" yaml:"loaddelay"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("canvas.minscale", 0.1)
	v.SetDefault("canvas.maxscale", 10.0)
	v.SetDefault("canvas.zoomstep", 1.2)
	v.SetDefault("canvas.fitmargin", 0.9)
	v.SetDefault("canvas.minrectsize", 5.0)
	v.SetDefault("canvas.minregionsize", 10.0)
	v.SetDefault("canvas.pointhitradius", 10.0)
	v.SetDefault("canvas.pointradius", 5.0)
	v.SetDefault("canvas.dimopacity", 0.15)

	v.SetDefault("colors.strategy", "hash")
	v.SetDefault("colors.palette", colorutil.DefaultPalette)
	v.SetDefault("colors.aicolor", colorutil.AIAccentHex)

	v.SetDefault("detection.engine", EngineSimulated)
	v.SetDefault("detection.delay", 2*time.Second)
	v.SetDefault("detection.osddelay", 2*time.Second)
	v.SetDefault("detection.minconfidence", 0.3)
	v.SetDefault("detection.maxconfidence", 0.8)
	v.SetDefault("detection.maxsuggestions", 3)
	v.SetDefault("detection.osdrate", 0.5)
	v.SetDefault("detection.ocrlanguage", "eng")
	v.SetDefault("detection.matchthreshold", 0.8)

	v.SetDefault("export.format", "xywh")
	v.SetDefault("export.includeunknown", false)
	v.SetDefault("export.delay", time.Second)

	v.SetDefault("images.cachettl", 10*time.Minute)
	v.SetDefault("images.httptimeout", 15*time.Second)
	v.SetDefault("images.maxbytes", 64<<20)

	v.SetDefault("data.seed", 1)
	v.SetDefault("data.loaddelay", 500*time.Millisecond)
}

// Default returns the built-in configuration.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// DefaultPath returns the per-user configuration file location, or "" when
// the user config directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppDirName, "annotator.yaml")
}

// Load reads the configuration. With an empty path it looks for
// annotator.yaml in the user config directory and the working directory,
// and a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("annotator")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, AppDirName))
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and names.
func (c Config) Validate() error {
	var errs []error
	cv := c.Canvas
	if cv.MinScale <= 0 || cv.MaxScale < cv.MinScale {
		errs = append(errs, fmt.Errorf("canvas: invalid scale range [%v, %v]", cv.MinScale, cv.MaxScale))
	}
	if cv.ZoomStep <= 1 {
		errs = append(errs, fmt.Errorf("canvas: zoomstep must be > 1, got %v", cv.ZoomStep))
	}
	if cv.FitMargin <= 0 || cv.FitMargin > 1 {
		errs = append(errs, fmt.Errorf("canvas: fitmargin must be in (0,1], got %v", cv.FitMargin))
	}
	if cv.DimOpacity <= 0 || cv.DimOpacity > 1 {
		errs = append(errs, fmt.Errorf("canvas: dimopacity must be in (0,1], got %v", cv.DimOpacity))
	}

	if _, err := colorutil.ParseStrategy(c.Colors.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("colors: %w", err))
	}
	if _, err := colorutil.NewAssignerFromHex(colorutil.StrategyHash, c.Colors.Palette, c.Colors.AIColor); err != nil {
		errs = append(errs, fmt.Errorf("colors: %w", err))
	}

	d := c.Detection
	if d.MinConfidence < 0 || d.MaxConfidence > 1 || d.MinConfidence > d.MaxConfidence {
		errs = append(errs, fmt.Errorf("detection: invalid confidence range [%v, %v]", d.MinConfidence, d.MaxConfidence))
	}
	switch d.Engine {
	case EngineSimulated, EngineVision:
	default:
		errs = append(errs, fmt.Errorf("detection: unknown engine %q", d.Engine))
	}
	if d.OSDRate < 0 || d.OSDRate > 1 {
		errs = append(errs, fmt.Errorf("detection: osdrate must be in [0,1], got %v", d.OSDRate))
	}

	switch c.Export.Format {
	case "xywh", "xyxy":
	default:
		errs = append(errs, fmt.Errorf("export: unknown format %q", c.Export.Format))
	}
	return errors.Join(errs...)
}

// WriteDefaults writes the built-in configuration as YAML.
func WriteDefaults(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
