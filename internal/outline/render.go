package outline

import (
	"image"
	"image/color"

	"github.com/dshills/inkwell/internal/engine/surface"
)

var (
	paper = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	ink   = color.RGBA{A: 0xff}
)

// LineWidth returns the pen width used for an outline of the given size.
func (o Outline) LineWidth() float64 {
	w := float64(min(o.Width, o.Height)) / 128
	return max(w, 2)
}

// Render draws the outline as black strokes on white.
func (o Outline) Render() (image.Image, error) {
	s, err := surface.New(o.Width, o.Height, paper)
	if err != nil {
		return nil, err
	}

	brush := surface.Brush{Color: ink, Width: o.LineWidth()}
	for _, pts := range o.Strokes {
		if err := s.Stroke(surface.Stroke{Points: pts, Brush: brush}); err != nil {
			return nil, err
		}
	}
	return s.Image(), nil
}
