// Package core provides shared types for the renderer subsystem.
// This package breaks import cycles between renderer and backend.
package core

import (
	"fmt"
	"image/color"

	"github.com/rivo/uniseg"
)

// Attribute represents text attributes (bold, reverse, etc.).
type Attribute uint16

// Text attribute flags.
const (
	AttrNone      Attribute = 0
	AttrBold      Attribute = 1 << iota
	AttrDim                 // Faint/dim text
	AttrUnderline           // Underlined text
	AttrReverse             // Reverse video (swap fg/bg)
)

// Has returns true if the attribute set contains the given attribute.
func (a Attribute) Has(attr Attribute) bool {
	return a&attr != 0
}

// Color is a true color or the terminal default.
type Color struct {
	R, G, B uint8
	// Default indicates this is the terminal's default color.
	Default bool
}

// ColorDefault represents the terminal's default color.
var ColorDefault = Color{Default: true}

// Common colors.
var (
	ColorBlack = Color{R: 0, G: 0, B: 0}
	ColorWhite = Color{R: 255, G: 255, B: 255}
	ColorGray  = Color{R: 128, G: 128, B: 128}
)

// ColorFromRGB creates a true color from RGB components.
func ColorFromRGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// ColorFromRGBA converts an opaque image color, ignoring alpha.
func ColorFromRGBA(c color.RGBA) Color {
	return Color{R: c.R, G: c.G, B: c.B}
}

// IsDefault returns true if this is the default color.
func (c Color) IsDefault() bool {
	return c.Default
}

// Equals returns true if two colors are equal.
func (c Color) Equals(other Color) bool {
	if c.Default || other.Default {
		return c.Default == other.Default
	}
	return c.R == other.R && c.G == other.G && c.B == other.B
}

// Luminance returns the perceived brightness in [0,1].
func (c Color) Luminance() float64 {
	return (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
}

// Contrast returns black or white, whichever reads better on c.
func (c Color) Contrast() Color {
	if c.Luminance() > 0.55 {
		return ColorBlack
	}
	return ColorWhite
}

// String returns a string representation of the color.
func (c Color) String() string {
	if c.IsDefault() {
		return "default"
	}
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Style represents the visual style of a cell.
type Style struct {
	Foreground Color
	Background Color
	Attributes Attribute
}

// DefaultStyle returns the default terminal style.
func DefaultStyle() Style {
	return Style{
		Foreground: ColorDefault,
		Background: ColorDefault,
		Attributes: AttrNone,
	}
}

// WithForeground returns a new style with the given foreground color.
func (s Style) WithForeground(fg Color) Style {
	s.Foreground = fg
	return s
}

// WithBackground returns a new style with the given background color.
func (s Style) WithBackground(bg Color) Style {
	s.Background = bg
	return s
}

// Bold returns a new style with bold attribute added.
func (s Style) Bold() Style {
	s.Attributes |= AttrBold
	return s
}

// Dim returns a new style with dim attribute added.
func (s Style) Dim() Style {
	s.Attributes |= AttrDim
	return s
}

// Reverse returns a new style with reverse video attribute added.
func (s Style) Reverse() Style {
	s.Attributes |= AttrReverse
	return s
}

// Equals returns true if two styles are identical.
func (s Style) Equals(other Style) bool {
	return s.Foreground.Equals(other.Foreground) &&
		s.Background.Equals(other.Background) &&
		s.Attributes == other.Attributes
}

// Cell represents a single terminal cell.
type Cell struct {
	// Rune is the base character to display.
	Rune rune

	// Combining holds combining runes drawn with Rune.
	Combining []rune

	// Width is the display width of this cell.
	Width int

	// Style is the visual style for this cell.
	Style Style
}

// EmptyCell returns an empty cell with default style.
func EmptyCell() Cell {
	return Cell{
		Rune:  ' ',
		Width: 1,
		Style: DefaultStyle(),
	}
}

// NewStyledCell creates a cell with the given rune and style.
func NewStyledCell(r rune, style Style) Cell {
	return Cell{
		Rune:  r,
		Width: RuneWidth(r),
		Style: style,
	}
}

// Equals returns true if two cells are identical.
func (c Cell) Equals(other Cell) bool {
	if c.Rune != other.Rune || c.Width != other.Width || len(c.Combining) != len(other.Combining) {
		return false
	}
	for i := range c.Combining {
		if c.Combining[i] != other.Combining[i] {
			return false
		}
	}
	return c.Style.Equals(other.Style)
}

// RuneWidth returns the display width of a rune.
func RuneWidth(r rune) int {
	if r < 32 || r == 0x7F {
		return 0
	}
	return uniseg.StringWidth(string(r))
}

// StringWidth returns the display width of s in cells.
func StringWidth(s string) int {
	return uniseg.StringWidth(s)
}

// CellsFromString splits s into grapheme clusters, one cell each. Wide
// clusters are followed by a zero-width continuation cell.
func CellsFromString(s string, style Style) []Cell {
	cells := make([]Cell, 0, len(s))
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		runes := g.Runes()
		width := g.Width()
		if width == 0 {
			continue
		}
		cells = append(cells, Cell{
			Rune:      runes[0],
			Combining: runes[1:],
			Width:     width,
			Style:     style,
		})
		for i := 1; i < width; i++ {
			cells = append(cells, Cell{Style: style})
		}
	}
	return cells
}

// ScreenRect represents a rectangular region on screen.
type ScreenRect struct {
	Top    int // First row (inclusive)
	Left   int // First column (inclusive)
	Bottom int // Last row (exclusive)
	Right  int // Last column (exclusive)
}

// RectFromSize creates a rectangle from position and size.
func RectFromSize(top, left, height, width int) ScreenRect {
	return ScreenRect{Top: top, Left: left, Bottom: top + height, Right: left + width}
}

// Width returns the width of the rectangle.
func (r ScreenRect) Width() int {
	if r.Right <= r.Left {
		return 0
	}
	return r.Right - r.Left
}

// Height returns the height of the rectangle.
func (r ScreenRect) Height() int {
	if r.Bottom <= r.Top {
		return 0
	}
	return r.Bottom - r.Top
}

// IsEmpty returns true if the rectangle has no area.
func (r ScreenRect) IsEmpty() bool {
	return r.Width() == 0 || r.Height() == 0
}

// Contains returns true if the point is inside the rectangle.
func (r ScreenRect) Contains(x, y int) bool {
	return x >= r.Left && x < r.Right && y >= r.Top && y < r.Bottom
}
