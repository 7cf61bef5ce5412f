package outline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/inkwell/internal/engine/surface"
)

// ErrInvalidOutline reports a model reply that is not a usable outline.
var ErrInvalidOutline = errors.New("invalid outline")

// Outline limits.
const (
	DefaultOutlineSize = 512
	MaxOutlineSize     = 4096
)

// Outline is line art described as polylines in pixel coordinates.
type Outline struct {
	Width   int
	Height  int
	Strokes [][]surface.Point
}

// ParseOutline reads {"width":W,"height":H,"strokes":[[[x,y],...],...]}
// from a model reply. Prose or code fences around the object are ignored.
// Points may also be written as {"x":..,"y":..}.
func ParseOutline(text string) (Outline, error) {
	body, ok := extractObject(text)
	if !ok || !gjson.Valid(body) {
		return Outline{}, fmt.Errorf("%w: no json object in reply", ErrInvalidOutline)
	}

	res := gjson.GetMany(body, "width", "height", "strokes")
	o := Outline{
		Width:  dimension(res[0]),
		Height: dimension(res[1]),
	}
	if o.Width <= 0 || o.Height <= 0 || o.Width > MaxOutlineSize || o.Height > MaxOutlineSize {
		return Outline{}, fmt.Errorf("%w: size %dx%d", ErrInvalidOutline, o.Width, o.Height)
	}
	if !res[2].IsArray() {
		return Outline{}, fmt.Errorf("%w: strokes missing", ErrInvalidOutline)
	}

	for i, st := range res[2].Array() {
		var pts []surface.Point
		for j, raw := range st.Array() {
			p, err := parsePoint(raw)
			if err != nil {
				return Outline{}, fmt.Errorf("%w: stroke %d point %d: %v", ErrInvalidOutline, i, j, err)
			}
			pts = append(pts, p)
		}
		if len(pts) > 0 {
			o.Strokes = append(o.Strokes, pts)
		}
	}
	if len(o.Strokes) == 0 {
		return Outline{}, fmt.Errorf("%w: no strokes", ErrInvalidOutline)
	}
	return o, nil
}

// extractObject returns the text between the first '{' and the last '}'.
func extractObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func dimension(v gjson.Result) int {
	if !v.Exists() {
		return DefaultOutlineSize
	}
	return int(v.Int())
}

func parsePoint(v gjson.Result) (surface.Point, error) {
	switch {
	case v.IsArray():
		xy := v.Array()
		if len(xy) != 2 || xy[0].Type != gjson.Number || xy[1].Type != gjson.Number {
			return surface.Point{}, errors.New("want [x,y]")
		}
		return surface.Point{X: xy[0].Float(), Y: xy[1].Float()}, nil
	case v.IsObject():
		x, y := v.Get("x"), v.Get("y")
		if x.Type != gjson.Number || y.Type != gjson.Number {
			return surface.Point{}, errors.New("want {x,y}")
		}
		return surface.Point{X: x.Float(), Y: y.Float()}, nil
	default:
		return surface.Point{}, fmt.Errorf("unexpected %s", v.Type)
	}
}

// systemPrompt instructs text models to reply with an SVG outline.
func systemPrompt(width, height int) string {
	return fmt.Sprintf(
		"You draw simple black line-art outlines for a %dx%d pixel canvas. "+
			`Reply with a single SVG document and nothing else, using viewBox="0 0 %d %d". `+
			`Draw with stroke="black" and fill="none". `+
			"Use clean closed shapes, no shading, no text.",
		width, height, width, height)
}
