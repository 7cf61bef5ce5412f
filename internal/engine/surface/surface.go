// Package surface provides the in-memory raster the canvas draws on.
//
// Strokes are rasterized with gogpu/gg into a pixmap the Surface owns, so
// capture and restore are exact byte copies of the pixels.
package surface

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"

	"github.com/dshills/inkwell/internal/engine/history"
)

// Errors for surface operations.
var (
	ErrInvalidSize           = errors.New("invalid surface size")
	ErrSizeMismatch          = errors.New("snapshot size does not match surface")
	ErrUnknownFormat         = errors.New("unknown image format")
	ErrEmptySnapshot         = errors.New("empty snapshot")
	ErrTransparentBackground = errors.New("background must be opaque")
)

// Format is an export encoding.
type Format int

const (
	FormatPNG Format = iota
	FormatJPEG
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	default:
		return "unknown"
	}
}

// FormatForPath picks a format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", "":
		return FormatPNG, nil
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Surface is a fixed-size RGBA raster.
type Surface struct {
	mu sync.Mutex

	width, height int
	background    color.RGBA

	pixmap *gg.Pixmap
	dc     *gg.Context

	// view shares pixmap memory for image/draw operations.
	view *image.RGBA
}

// New creates a surface filled with the background color.
func New(width, height int, background color.RGBA) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if background.A != 0xff {
		return nil, ErrTransparentBackground
	}

	pm := gg.NewPixmap(width, height)
	s := &Surface{
		width:      width,
		height:     height,
		background: background,
		pixmap:     pm,
		dc:         gg.NewContext(width, height, gg.WithPixmap(pm)),
		view: &image.RGBA{
			Pix:    pm.Data(),
			Stride: width * 4,
			Rect:   image.Rect(0, 0, width, height),
		},
	}
	s.dc.SetLineCap(gg.LineCapRound)
	s.dc.SetLineJoin(gg.LineJoinRound)
	s.blankLocked()
	return s, nil
}

// Size returns the surface dimensions.
func (s *Surface) Size() (width, height int) {
	return s.width, s.height
}

// Background returns the blank color.
func (s *Surface) Background() color.RGBA {
	return s.background
}

// Blank fills the surface with the background color.
func (s *Surface) Blank() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blankLocked()
}

func (s *Surface) blankLocked() {
	draw.Draw(s.view, s.view.Rect, image.NewUniform(s.background), image.Point{}, draw.Src)
}

// Stroke paints a whole polyline.
func (s *Surface) Stroke(st Stroke) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch len(st.Points) {
	case 0:
		return nil
	case 1:
		return s.dotLocked(st.Points[0], st.Brush)
	}

	s.dc.SetColor(st.Brush.Color)
	s.dc.SetLineWidth(st.Brush.Width)
	s.dc.MoveTo(st.Points[0].X, st.Points[0].Y)
	for _, p := range st.Points[1:] {
		s.dc.LineTo(p.X, p.Y)
	}
	if err := s.dc.Stroke(); err != nil {
		return fmt.Errorf("stroke: %w", err)
	}
	return s.dc.FlushGPU()
}

// Segment paints one piece of an in-progress stroke.
func (s *Surface) Segment(from, to Point, brush Brush) error {
	if from == to {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.dotLocked(from, brush)
	}
	return s.Stroke(Stroke{Points: []Point{from, to}, Brush: brush})
}

func (s *Surface) dotLocked(p Point, brush Brush) error {
	s.dc.SetColor(brush.Color)
	s.dc.DrawCircle(p.X, p.Y, brush.Width/2)
	if err := s.dc.Fill(); err != nil {
		return fmt.Errorf("dot: %w", err)
	}
	return s.dc.FlushGPU()
}

// DrawImage blanks the surface and draws img scaled to fit, centered.
func (s *Surface) DrawImage(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blankLocked()
	dst := fitRect(img.Bounds(), s.view.Rect)
	xdraw.CatmullRom.Scale(s.view, dst, img, img.Bounds(), xdraw.Over, nil)
}

// fitRect returns the largest rectangle with src's aspect ratio centered in
// bounds.
func fitRect(src, bounds image.Rectangle) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	bw, bh := bounds.Dx(), bounds.Dy()
	if sw <= 0 || sh <= 0 {
		return image.Rectangle{}
	}

	w, h := bw, sh*bw/sw
	if h > bh {
		w, h = sw*bh/sh, bh
	}
	x := bounds.Min.X + (bw-w)/2
	y := bounds.Min.Y + (bh-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// Capture encodes the surface as a PNG snapshot.
func (s *Surface) Capture() (history.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	if err := png.Encode(&buf, s.view); err != nil {
		return history.Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return history.NewSnapshot(buf.Bytes()), nil
}

// Restore decodes a PNG snapshot and replaces every pixel.
func (s *Surface) Restore(ctx context.Context, snap history.Snapshot) error {
	if snap.Size() == 0 {
		return ErrEmptySnapshot
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := png.Decode(bytes.NewReader(snap.Bytes()))
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	b := img.Bounds()
	if b.Dx() != s.width || b.Dy() != s.height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrSizeMismatch, b.Dx(), b.Dy(), s.width, s.height)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	draw.Draw(s.view, s.view.Rect, img, b.Min, draw.Src)
	return nil
}

// Image returns a copy of the current pixels.
func (s *Surface) Image() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()

	img := image.NewRGBA(s.view.Rect)
	copy(img.Pix, s.view.Pix)
	return img
}

// At returns the color of one pixel.
func (s *Surface) At(x, y int) color.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.RGBAAt(x, y)
}

// Export writes the current surface in the given format.
func (s *Surface) Export(w io.Writer, f Format) error {
	img := s.Image()
	switch f {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 92})
	default:
		return ErrUnknownFormat
	}
}
