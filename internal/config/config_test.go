package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.1, cfg.Canvas.MinScale)
	assert.Equal(t, 10.0, cfg.Canvas.MaxScale)
	assert.Equal(t, 1.2, cfg.Canvas.ZoomStep)
	assert.Equal(t, 0.9, cfg.Canvas.FitMargin)
	assert.Equal(t, 5.0, cfg.Canvas.MinRectSize)
	assert.Equal(t, 10.0, cfg.Canvas.MinRegionSize)
	assert.Equal(t, 0.15, cfg.Canvas.DimOpacity)
	assert.Len(t, cfg.Colors.Palette, 8)
	assert.Equal(t, "#2563EB", cfg.Colors.AIColor)
	assert.Equal(t, 2*time.Second, cfg.Detection.Delay)
	assert.Equal(t, "xywh", cfg.Export.Format)
	assert.Equal(t, EngineSimulated, cfg.Detection.Engine)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "annotator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
canvas:
  zoomstep: 1.5
colors:
  strategy: first-seen
detection:
  delay: 250ms
export:
  format: xyxy
  includeunknown: true
`), 0o644))

	t.Setenv("ANNOTATOR_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 1.5, cfg.Canvas.ZoomStep)
	assert.Equal(t, 0.1, cfg.Canvas.MinScale, "unset keys keep defaults")
	assert.Equal(t, "first-seen", cfg.Colors.Strategy)
	assert.Equal(t, 250*time.Millisecond, cfg.Detection.Delay)
	assert.Equal(t, "xyxy", cfg.Export.Format)
	assert.True(t, cfg.Export.IncludeUnknown)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
canvas:
  zoomstep: 0.5
export:
  format: coco
detection:
  engine: neural
colors:
  palette: ["#12"]
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zoomstep")
	assert.Contains(t, err.Error(), "coco")
	assert.Contains(t, err.Error(), "neural")
	assert.Contains(t, err.Error(), "#12")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWriteDefaultsRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDefaults(&buf))
	assert.Contains(t, buf.String(), "zoomstep: 1.2")

	var back Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, Default(), back)
}
