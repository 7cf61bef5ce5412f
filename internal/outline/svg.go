package outline

import (
	"fmt"
	"image"
	"image/draw"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// ExtractSVG returns the <svg> document in a model reply. Code fences and
// prose before the opening tag are dropped.
func ExtractSVG(text string) (string, bool) {
	start := strings.Index(text, "<svg")
	if start < 0 {
		return "", false
	}
	doc := text[start:]
	if end := strings.LastIndex(doc, "</svg>"); end >= 0 {
		doc = doc[:end+len("</svg>")]
	}
	return doc, true
}

// RenderSVG rasterizes doc onto a white w x h image. The view box is
// scaled to fit. A document without one is drawn in pixel units.
func RenderSVG(doc string, w, h int) (image.Image, error) {
	if w <= 0 || h <= 0 || w > MaxOutlineSize || h > MaxOutlineSize {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidOutline, w, h)
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(doc), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("%w: svg: %v", ErrInvalidOutline, err)
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		icon.ViewBox.X, icon.ViewBox.Y = 0, 0
		icon.ViewBox.W, icon.ViewBox.H = float64(w), float64(h)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(paper), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)
	return img, nil
}

// ParseReply turns a text model reply into an image of at most w x h.
// SVG documents are rasterized at w x h. Otherwise the reply is read as
// a polyline outline.
func ParseReply(text string, w, h int) (image.Image, error) {
	if doc, ok := ExtractSVG(text); ok {
		return RenderSVG(doc, w, h)
	}
	o, err := ParseOutline(text)
	if err != nil {
		return nil, err
	}
	return o.Render()
}
