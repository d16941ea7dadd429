package colorutil

import (
	"fmt"
	"image/color"
	"sync"
	"unicode/utf16"
)

// Strategy selects how categories are mapped to palette slots.
type Strategy int

const (
	// StrategyHash indexes the palette by a string hash of the category.
	StrategyHash Strategy = iota
	// StrategyFirstSeen hands out palette slots in order of first request.
	StrategyFirstSeen
)

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyHash:
		return "hash"
	case StrategyFirstSeen:
		return "first-seen"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses a configuration name.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "hash", "":
		return StrategyHash, nil
	case "first-seen", "order":
		return StrategyFirstSeen, nil
	}
	return StrategyHash, fmt.Errorf("unknown color strategy %q", s)
}

// Assigner maps category names to palette colors. The mapping is stable for
// the lifetime of the Assigner. Safe for concurrent use.
type Assigner struct {
	strategy Strategy
	palette  []color.RGBA
	accent   color.RGBA

	mu   sync.Mutex
	seen map[string]int
}

// NewAssigner creates an assigner over palette. An empty palette falls back
// to DefaultPalette.
func NewAssigner(strategy Strategy, palette []color.RGBA) *Assigner {
	if len(palette) == 0 {
		palette = make([]color.RGBA, len(DefaultPalette))
		for i, h := range DefaultPalette {
			palette[i] = MustParseHex(h)
		}
	}
	return &Assigner{
		strategy: strategy,
		palette:  palette,
		accent:   AIAccent,
		seen:     make(map[string]int),
	}
}

// NewAssignerFromHex parses hex palette entries and builds an assigner.
func NewAssignerFromHex(strategy Strategy, palette []string, accent string) (*Assigner, error) {
	colors := make([]color.RGBA, 0, len(palette))
	for _, h := range palette {
		c, err := ParseHex(h)
		if err != nil {
			return nil, err
		}
		colors = append(colors, c)
	}
	a := NewAssigner(strategy, colors)
	if accent != "" {
		c, err := ParseHex(accent)
		if err != nil {
			return nil, err
		}
		a.accent = c
	}
	return a, nil
}

// Strategy returns the active strategy.
func (a *Assigner) Strategy() Strategy {
	return a.strategy
}

// ColorFor returns the color of a category.
func (a *Assigner) ColorFor(category string) color.RGBA {
	return a.palette[a.index(category)]
}

// LabelColor returns the display color for a label. AI suggestions always
// use the accent color regardless of category.
func (a *Assigner) LabelColor(category string, isAI bool) color.RGBA {
	if isAI {
		return a.accent
	}
	return a.ColorFor(category)
}

func (a *Assigner) index(category string) int {
	if a.strategy == StrategyHash {
		return HashIndex(category, len(a.palette))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if i, ok := a.seen[category]; ok {
		return i
	}
	i := len(a.seen) % len(a.palette)
	a.seen[category] = i
	return i
}

// HashIndex returns abs(h) mod n where h folds the UTF-16 code units of s
// with h = h*31 + c in 32-bit signed arithmetic.
func HashIndex(s string, n int) int {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int(v % int64(n))
}
