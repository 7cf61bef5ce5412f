package surface

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidColor is returned for colors that cannot be parsed.
var ErrInvalidColor = errors.New("invalid color")

// Point is a position in surface pixels.
type Point struct {
	X, Y float64
}

// Brush describes how strokes are painted.
type Brush struct {
	Color color.RGBA
	Width float64
}

// DefaultBrush is a 4px black pen.
func DefaultBrush() Brush {
	return Brush{Color: color.RGBA{A: 0xff}, Width: 4}
}

// WithColor returns a copy of the brush with a new color.
func (b Brush) WithColor(c color.RGBA) Brush {
	b.Color = c
	return b
}

// WithWidth returns a copy of the brush with a new width, at least 1px.
func (b Brush) WithWidth(w float64) Brush {
	b.Width = math.Max(1, w)
	return b
}

// Hex returns the brush color as #rrggbb.
func (b Brush) Hex() string {
	return ToHex(b.Color)
}

// Stroke is a freehand polyline painted with one brush.
type Stroke struct {
	Points []Point
	Brush  Brush
}

// ParseHex parses #rgb or #rrggbb into an opaque color.
func ParseHex(s string) (color.RGBA, error) {
	if (len(s) != 4 && len(s) != 7) || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// ToHex formats a color as #rrggbb.
func ToHex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
