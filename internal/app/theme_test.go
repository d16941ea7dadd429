package app

import (
	"image/color"
	"testing"

	"fyne.io/fyne/v2/theme"

	"image-annotator/pkg/colorutil"

	"github.com/stretchr/testify/assert"
)

func TestAnnotatorThemeColors(t *testing.T) {
	th := &AnnotatorTheme{}
	accent := colorutil.AIAccent

	assert.Equal(t, color.NRGBA{R: accent.R, G: accent.G, B: accent.B, A: 0xFF},
		th.Color(theme.ColorNamePrimary, theme.VariantDark))
	assert.Equal(t, color.NRGBA{R: 0xF3, G: 0xF4, B: 0xF6, A: 0xFF},
		th.Color(theme.ColorNameBackground, theme.VariantLight))
	assert.Equal(t, theme.DefaultTheme().Color(theme.ColorNameBackground, theme.VariantDark),
		th.Color(theme.ColorNameBackground, theme.VariantDark))
	assert.Equal(t, theme.DefaultTheme().Color(theme.ColorNameError, theme.VariantLight),
		th.Color(theme.ColorNameError, theme.VariantLight))
	assert.Equal(t, float32(16), th.Size(theme.SizeNameScrollBar))
}
