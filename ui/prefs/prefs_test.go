package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", prefsFile)
	p, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "xywh", p.String(KeyExportFormat, "xywh"))
	assert.True(t, p.Bool(KeyExportUnknown, true))
	assert.Equal(t, 1200.0, p.FloatWithFallback(KeyWindowWidth, 1200))

	p.SetString(KeyExportFormat, "xyxy")
	p.SetBool(KeyExportUnknown, false)
	p.SetFloat(KeyWindowWidth, 1440)
	require.NoError(t, p.Save())

	q, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, path, q.Path())
	assert.Equal(t, "xyxy", q.String(KeyExportFormat, ""))
	assert.False(t, q.Bool(KeyExportUnknown, true))
	assert.Equal(t, 1440.0, q.FloatWithFallback(KeyWindowWidth, 0))
}

func TestWrongTypeFallsBack(t *testing.T) {
	p, err := LoadFrom(filepath.Join(t.TempDir(), prefsFile))
	require.NoError(t, err)
	p.SetString(KeyWindowWidth, "wide")
	assert.Equal(t, 800.0, p.FloatWithFallback(KeyWindowWidth, 800))
	assert.False(t, p.Bool(KeyWindowWidth, false))
}

func TestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), prefsFile)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	p, err := LoadFrom(path)
	assert.Error(t, err)
	assert.Equal(t, "d", p.String(KeyLastDataset, "d"))
}
