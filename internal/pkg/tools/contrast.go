// Package tools holds the accessibility checks that the gated tool
// endpoints run. Everything here is pure computation except AuditURL.
package tools

import (
	"errors"
	"fmt"
	"math"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// WCAG 2.x contrast thresholds.
const (
	minContrastAANormal  = 4.5
	minContrastAALarge   = 3.0
	minContrastAAANormal = 7.0
	minContrastAAALarge  = 4.5
)

var ErrInvalidColor = errors.New("invalid color, expected #rgb or #rrggbb")

// ContrastResult is the WCAG evaluation of one color pair.
type ContrastResult struct {
	Foreground string  `json:"foreground"`
	Background string  `json:"background"`
	Ratio      float64 `json:"ratio"`
	AANormal   bool    `json:"aa_normal"`
	AALarge    bool    `json:"aa_large"`
	AAANormal  bool    `json:"aaa_normal"`
	AAALarge   bool    `json:"aaa_large"`
}

// ParseColor accepts #rgb or #rrggbb, with or without the leading hash.
func ParseColor(s string) (colorful.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if len(s) != 4 && len(s) != 7 {
		return colorful.Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return c, nil
}

// RelativeLuminance per WCAG, from linearised sRGB channels.
func RelativeLuminance(c colorful.Color) float64 {
	r, g, b := c.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

func contrastOf(a, b colorful.Color) float64 {
	la, lb := RelativeLuminance(a), RelativeLuminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

// ContrastRatio evaluates foreground text on a background color.
func ContrastRatio(fg, bg string) (ContrastResult, error) {
	f, err := ParseColor(fg)
	if err != nil {
		return ContrastResult{}, err
	}
	b, err := ParseColor(bg)
	if err != nil {
		return ContrastResult{}, err
	}

	ratio := contrastOf(f, b)
	return ContrastResult{
		Foreground: f.Hex(),
		Background: b.Hex(),
		Ratio:      math.Round(ratio*100) / 100,
		AANormal:   ratio >= minContrastAANormal,
		AALarge:    ratio >= minContrastAALarge,
		AAANormal:  ratio >= minContrastAAANormal,
		AAALarge:   ratio >= minContrastAAALarge,
	}, nil
}
