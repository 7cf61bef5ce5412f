// Package renderer draws the canvas preview and the toolbar into a
// terminal backend.
//
// The preview uses the upper half block, so each cell shows two vertically
// stacked pixels: the foreground paints the top one and the background the
// bottom one.
package renderer

import (
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"github.com/dshills/inkwell/internal/engine/surface"
	"github.com/dshills/inkwell/internal/renderer/backend"
	"github.com/dshills/inkwell/internal/renderer/core"
)

const halfBlock = '▀'

// MaxSwatches is the number of palette colors bound to the digit keys.
const MaxSwatches = 9

// Theme holds the chrome colors.
type Theme struct {
	Bar      core.Style
	Muted    core.Style
	Backdrop core.Style
	Status   core.Style
	Error    core.Style
}

// DefaultTheme returns the built-in theme.
func DefaultTheme() Theme {
	bar := core.DefaultStyle().
		WithForeground(core.ColorFromRGB(230, 230, 230)).
		WithBackground(core.ColorFromRGB(40, 40, 48))
	return Theme{
		Bar:      bar,
		Muted:    bar.WithForeground(core.ColorFromRGB(110, 110, 120)),
		Backdrop: core.DefaultStyle().WithBackground(core.ColorFromRGB(24, 24, 28)),
		Status:   bar,
		Error:    bar.WithForeground(core.ColorFromRGB(255, 110, 100)).Bold(),
	}
}

// View is the application state shown around the preview.
type View struct {
	Palette  []color.RGBA
	Selected int
	Scheme   string

	// Tool names the active tool. Empty shows "brush".
	Tool       string
	BrushWidth float64

	CanUndo    bool
	CanRedo    bool
	HistoryLen int
	Cursor     int

	Status      string
	StatusError bool

	Prompting bool
	Prompt    string
	Busy      bool
}

// preview records where the last frame put the image.
type preview struct {
	left, top int // first cell
	pw, ph    int // preview size in half-block pixels
	iw, ih    int // source image size
}

// Renderer draws frames into a backend.
type Renderer struct {
	backend backend.Backend
	theme   Theme

	preview  preview
	swatches []core.ScreenRect
}

// New creates a renderer for the backend.
func New(b backend.Backend) *Renderer {
	return &Renderer{backend: b, theme: DefaultTheme()}
}

// SetTheme replaces the chrome colors.
func (r *Renderer) SetTheme(t Theme) {
	r.theme = t
}

// CanvasRect returns the cells reserved for the preview: everything
// between the toolbar row and the status row.
func (r *Renderer) CanvasRect() core.ScreenRect {
	w, h := r.backend.Size()
	if h < 3 {
		return core.ScreenRect{}
	}
	return core.RectFromSize(1, 0, h-2, w)
}

// Draw renders one frame and shows it.
func (r *Renderer) Draw(img image.Image, v View) {
	w, h := r.backend.Size()
	if w <= 0 || h <= 0 {
		return
	}

	r.drawToolbar(w, v)
	r.drawPreview(img)
	if h >= 2 {
		r.drawStatus(w, h-1, v)
	}
	r.backend.Show()
}

func (r *Renderer) drawPreview(img image.Image) {
	area := r.CanvasRect()
	r.backend.Fill(area, core.NewStyledCell(' ', r.theme.Backdrop))
	r.preview = preview{}
	if area.IsEmpty() || img == nil {
		return
	}

	b := img.Bounds()
	iw, ih := b.Dx(), b.Dy()
	if iw <= 0 || ih <= 0 {
		return
	}

	pw, ph := fitPixels(iw, ih, area.Width(), area.Height()*2)
	dst := image.NewRGBA(image.Rect(0, 0, pw, ph))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)

	rows := (ph + 1) / 2
	left := area.Left + (area.Width()-pw)/2
	top := area.Top + (area.Height()-rows)/2
	r.preview = preview{left: left, top: top, pw: pw, ph: ph, iw: iw, ih: ih}

	for row := 0; row < rows; row++ {
		for col := 0; col < pw; col++ {
			style := core.DefaultStyle().
				WithForeground(core.ColorFromRGBA(dst.RGBAAt(col, row*2))).
				WithBackground(r.theme.Backdrop.Background)
			if row*2+1 < ph {
				style = style.WithBackground(core.ColorFromRGBA(dst.RGBAAt(col, row*2+1)))
			}
			r.backend.SetCell(left+col, top+row, core.NewStyledCell(halfBlock, style))
		}
	}
}

// fitPixels scales iw x ih to fit inside maxW x maxH, keeping the aspect
// ratio and at least one pixel per side.
func fitPixels(iw, ih, maxW, maxH int) (int, int) {
	scale := min(float64(maxW)/float64(iw), float64(maxH)/float64(ih))
	pw := max(1, int(float64(iw)*scale))
	ph := max(1, int(float64(ih)*scale))
	return min(pw, maxW), min(ph, maxH)
}

// CanvasPoint maps a terminal cell to surface coordinates at the cell's
// center. It reports false for cells outside the preview.
func (r *Renderer) CanvasPoint(x, y int) (surface.Point, bool) {
	p := r.preview
	if p.pw == 0 || p.ph == 0 {
		return surface.Point{}, false
	}
	col, row := x-p.left, y-p.top
	if col < 0 || col >= p.pw || row < 0 || row*2 >= p.ph {
		return surface.Point{}, false
	}

	sx := (float64(col) + 0.5) * float64(p.iw) / float64(p.pw)
	sy := float64(row*2+1) * float64(p.ih) / float64(p.ph)
	return surface.Point{
		X: min(sx, float64(p.iw-1)),
		Y: min(sy, float64(p.ih-1)),
	}, true
}

// SwatchAt returns the palette index drawn at cell (x, y).
func (r *Renderer) SwatchAt(x, y int) (int, bool) {
	for i, rect := range r.swatches {
		if rect.Contains(x, y) {
			return i, true
		}
	}
	return 0, false
}

func (r *Renderer) drawToolbar(width int, v View) {
	bar := r.theme.Bar
	r.backend.Fill(core.RectFromSize(0, 0, 1, width), core.NewStyledCell(' ', bar))

	x := r.text(0, 0, width, " inkwell ", bar.Bold())

	r.swatches = r.swatches[:0]
	for i, c := range v.Palette {
		if i >= MaxSwatches {
			break
		}
		bg := core.ColorFromRGBA(c)
		style := core.DefaultStyle().WithBackground(bg).WithForeground(bg.Contrast())
		label := fmt.Sprintf(" %d ", i+1)
		if i == v.Selected {
			label = fmt.Sprintf("[%d]", i+1)
			style = style.Bold()
		}
		start := x
		x = r.text(x, 0, width, label, style)
		r.swatches = append(r.swatches, core.ScreenRect{Top: 0, Left: start, Bottom: 1, Right: x})
	}

	x = r.text(x, 0, width, " "+v.Scheme, r.theme.Muted)
	tool := v.Tool
	if tool == "" {
		tool = "brush"
	}
	x = r.text(x, 0, width, fmt.Sprintf("  %s %g", tool, v.BrushWidth), bar)
	x = r.text(x, 0, width, "  ", bar)
	x = r.text(x, 0, width, "undo", r.enabled(v.CanUndo))
	x = r.text(x, 0, width, " ", bar)
	r.text(x, 0, width, "redo", r.enabled(v.CanRedo))
}

func (r *Renderer) enabled(on bool) core.Style {
	if on {
		return r.theme.Bar.Bold()
	}
	return r.theme.Muted
}

func (r *Renderer) drawStatus(width, y int, v View) {
	style := r.theme.Status
	r.backend.Fill(core.RectFromSize(y, 0, 1, width), core.NewStyledCell(' ', style))

	if v.Prompting {
		x := r.text(0, y, width, " outline> ", style.Bold())
		r.text(x, y, width, v.Prompt+"_", style)
		return
	}

	pos := fmt.Sprintf("%d/%d ", v.Cursor+1, v.HistoryLen)
	if v.HistoryLen == 0 {
		pos = ""
	}
	right := width - core.StringWidth(pos)

	msg := v.Status
	if v.Busy && msg == "" {
		msg = "generating outline..."
	}
	msgStyle := style
	if v.StatusError {
		msgStyle = r.theme.Error
	}
	r.text(0, y, right, " "+msg, msgStyle)
	if right > 0 {
		r.text(right, y, width, pos, r.theme.Muted)
	}
}

// text writes s starting at x, clipped at limit, and returns the column
// after the last cell written.
func (r *Renderer) text(x, y, limit int, s string, style core.Style) int {
	for _, c := range core.CellsFromString(s, style) {
		if x >= limit {
			break
		}
		r.backend.SetCell(x, y, c)
		x++
	}
	return x
}
