// Package colorutil maps category names to display colors and parses the
// hex colors used by the palette and the configuration file.
package colorutil

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// DefaultPalette is the fixed category palette. Colors wrap around once there
// are more categories than entries.
var DefaultPalette = []string{
	"#F97316", "#D946EF", "#0EA5E9", "#8B5CF6",
	"#10B981", "#EC4899", "#F59E0B", "#6366F1",
}

// AIAccentHex is the provenance color of unaccepted AI suggestions.
const AIAccentHex = "#2563EB"

// Fixed overlay colors.
var (
	Black     = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Yellow    = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	AIAccent  = MustParseHex(AIAccentHex)
	Canvas    = color.RGBA{R: 0xF3, G: 0xF4, B: 0xF6, A: 255}
	Selection = color.RGBA{R: 0x25, G: 0x63, B: 0xEB, A: 255}
)

// ParseHex parses "#RRGGBB" or "#RRGGBBAA" (leading '#' optional).
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	if len(h) == 6 {
		v = v<<8 | 0xFF
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// MustParseHex is ParseHex for compile-time constants. It panics on error.
func MustParseHex(s string) color.RGBA {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex formats c as "#RRGGBB", dropping alpha.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// WithAlpha returns c with its alpha scaled by opacity in [0,1].
func WithAlpha(c color.RGBA, opacity float64) color.RGBA {
	if opacity < 0 {
		opacity = 0
	} else if opacity > 1 {
		opacity = 1
	}
	c.A = uint8(float64(c.A)*opacity + 0.5)
	return c
}
