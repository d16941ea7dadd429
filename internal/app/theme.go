package app

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"

	"image-annotator/pkg/colorutil"
)

// AnnotatorTheme is the application theme. Its accents come from the label
// palette so widgets and canvas overlays read as one scheme.
type AnnotatorTheme struct{}

var _ fyne.Theme = (*AnnotatorTheme)(nil)

func (t *AnnotatorTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary:
		return nrgba(colorutil.AIAccent, 0xFF) // Same blue as AI suggestion outlines
	case theme.ColorNameFocus:
		return nrgba(colorutil.AIAccent, 0x7F)
	case theme.ColorNameSelection:
		return nrgba(colorutil.Selection, 0x4D) // Matches the region-select fill
	case theme.ColorNameScrollBar:
		return color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF} // Visible on long image lists
	case theme.ColorNameBackground:
		if variant == theme.VariantLight {
			return nrgba(colorutil.Canvas, 0xFF) // Panels share the canvas surround
		}
	}
	return theme.DefaultTheme().Color(name, variant)
}

func (t *AnnotatorTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *AnnotatorTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *AnnotatorTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameScrollBar:
		return 16
	case theme.SizeNameScrollBarSmall:
		return 12
	default:
		return theme.DefaultTheme().Size(name)
	}
}

func nrgba(c color.RGBA, a uint8) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: a}
}
