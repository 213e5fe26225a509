package tools

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	minPaletteSize = 2
	maxPaletteSize = 12
)

// Swatch is one palette entry with the text color that reads best on it.
type Swatch struct {
	Hex         string  `json:"hex"`
	TextColor   string  `json:"text_color"`
	Contrast    float64 `json:"contrast"`
	AANormal    bool    `json:"aa_normal"`
	OnWhite     float64 `json:"on_white"`
	OnBlack     float64 `json:"on_black"`
	IsBaseColor bool    `json:"is_base_color"`
}

var (
	white = colorful.Color{R: 1, G: 1, B: 1}
	black = colorful.Color{}
)

// GeneratePalette rotates the hue of base in HCL space, keeping its chroma
// and lightness so the swatches look equally heavy.
func GeneratePalette(base string, size int) ([]Swatch, error) {
	c, err := ParseColor(base)
	if err != nil {
		return nil, err
	}
	if size < minPaletteSize {
		size = minPaletteSize
	}
	if size > maxPaletteSize {
		size = maxPaletteSize
	}

	h, chroma, l := c.Hcl()
	step := 360.0 / float64(size)
	out := make([]Swatch, 0, size)
	for i := 0; i < size; i++ {
		col := c
		if i > 0 {
			col = colorful.Hcl(math.Mod(h+step*float64(i), 360), chroma, l).Clamped()
		}
		out = append(out, swatchFor(col, i == 0))
	}
	return out, nil
}

func swatchFor(c colorful.Color, isBase bool) Swatch {
	onWhite := contrastOf(c, white)
	onBlack := contrastOf(c, black)

	s := Swatch{
		Hex:         c.Hex(),
		OnWhite:     math.Round(onWhite*100) / 100,
		OnBlack:     math.Round(onBlack*100) / 100,
		IsBaseColor: isBase,
	}
	if onBlack >= onWhite {
		s.TextColor, s.Contrast = black.Hex(), onBlack
	} else {
		s.TextColor, s.Contrast = white.Hex(), onWhite
	}
	s.AANormal = s.Contrast >= minContrastAANormal
	s.Contrast = math.Round(s.Contrast*100) / 100
	return s
}
