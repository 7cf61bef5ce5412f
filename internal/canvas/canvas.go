// Package canvas ties the drawing surface, its history and the UI
// triggers together.
package canvas

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/dshills/inkwell/internal/engine/history"
	"github.com/dshills/inkwell/internal/engine/surface"
	"github.com/dshills/inkwell/internal/event"
)

// Commit labels.
const (
	LabelStroke = "stroke"
	LabelClear  = "clear"
	LabelImage  = "image"
	LabelBatch  = "batch"
)

// Options configures a Canvas.
type Options struct {
	Width, Height int
	Background    color.RGBA
	Brush         surface.Brush

	// MaxHistory caps the history length. Zero keeps every entry.
	MaxHistory int

	Bus    event.Bus
	Logger *slog.Logger

	// Listener receives every history change, before the bus does.
	Listener history.Listener
}

// Canvas is the drawing view model.
type Canvas struct {
	surface *surface.Surface
	history *history.History
	bus     event.Bus
	logger  *slog.Logger

	triggers *Triggers
	observer *Observer

	mu       sync.Mutex
	brush    surface.Brush
	tool     Tool
	stroke   []surface.Point
	drawing  bool
	listener history.Listener
}

// New creates a canvas. Call Open before drawing.
func New(opts Options) (*Canvas, error) {
	s, err := surface.New(opts.Width, opts.Height, opts.Background)
	if err != nil {
		return nil, fmt.Errorf("create surface: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	brush := opts.Brush
	if brush.Width <= 0 {
		brush = surface.DefaultBrush()
	}

	c := &Canvas{
		surface:  s,
		bus:      opts.Bus,
		logger:   logger,
		brush:    brush,
		listener: opts.Listener,
		triggers: &Triggers{},
	}
	c.history = history.New(s,
		history.WithMaxEntries(opts.MaxHistory),
		history.WithListener(c.onHistoryChange),
	)
	c.observer = NewObserver(c, c.triggers.Counts())
	return c, nil
}

// Open initializes history with the blank surface.
func (c *Canvas) Open() error {
	return c.history.Initialize()
}

// SetListener replaces the history listener.
func (c *Canvas) SetListener(l history.Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = l
}

// onHistoryChange runs under the history operation lock.
func (c *Canvas) onHistoryChange(st history.State) {
	c.mu.Lock()
	l := c.listener
	c.mu.Unlock()

	if l != nil {
		l(st)
	}
	c.publish(event.TopicHistoryChanged, event.HistoryChanged{
		CanUndo: st.CanUndo,
		CanRedo: st.CanRedo,
		Len:     st.Len,
		Cursor:  st.Cursor,
	})
}

func (c *Canvas) publish(topic event.Topic, payload any) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(context.Background(), topic, payload); err != nil {
		c.logger.Warn("event handler failed", "topic", string(topic), "error", err)
	}
}

// Triggers returns the request counters.
func (c *Canvas) Triggers() *Triggers {
	return c.triggers
}

// Sync fires the operations requested through Triggers since the last
// call.
func (c *Canvas) Sync(ctx context.Context) error {
	return c.observer.Observe(ctx, c.triggers.Counts())
}

// BeginStroke starts a stroke at p, abandoning any stroke in progress.
func (c *Canvas) BeginStroke(p surface.Point) error {
	if err := c.abandonStroke(context.Background()); err != nil {
		return err
	}

	c.mu.Lock()
	c.stroke = append(c.stroke[:0], p)
	c.drawing = true
	brush := c.paintBrushLocked(c.brush)
	c.mu.Unlock()

	return c.surface.Segment(p, p, brush)
}

// ExtendStroke adds a point to the stroke in progress.
func (c *Canvas) ExtendStroke(p surface.Point) error {
	c.mu.Lock()
	if !c.drawing {
		c.mu.Unlock()
		return nil
	}
	last := c.stroke[len(c.stroke)-1]
	if last == p {
		c.mu.Unlock()
		return nil
	}
	c.stroke = append(c.stroke, p)
	brush := c.paintBrushLocked(c.brush)
	c.mu.Unlock()

	return c.surface.Segment(last, p, brush)
}

// EndStroke finishes the stroke in progress and commits it through the
// stroke trigger.
func (c *Canvas) EndStroke(ctx context.Context) error {
	c.mu.Lock()
	if !c.drawing {
		c.mu.Unlock()
		return nil
	}
	c.drawing = false
	c.stroke = c.stroke[:0]
	c.mu.Unlock()

	c.triggers.CompleteStroke()
	return c.Sync(ctx)
}

// Drawing reports whether a stroke is in progress.
func (c *Canvas) Drawing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drawing
}

// DrawStroke paints a whole stroke and commits it. With the eraser selected
// the stroke paints the background whatever its brush color.
func (c *Canvas) DrawStroke(ctx context.Context, st surface.Stroke) error {
	if err := c.abandonStroke(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	st.Brush = c.paintBrushLocked(st.Brush)
	c.mu.Unlock()

	if err := c.surface.Stroke(st); err != nil {
		return err
	}
	c.triggers.CompleteStroke()
	return c.Sync(ctx)
}

// CommitStroke records the surface after a stroke.
func (c *Canvas) CommitStroke(context.Context) error {
	return c.commit(LabelStroke)
}

// Clear blanks the surface and commits.
func (c *Canvas) Clear(context.Context) error {
	c.dropStroke()
	c.surface.Blank()
	return c.commit(LabelClear)
}

// ApplyExternalImage replaces the surface with img, scaled to fit, and
// commits.
func (c *Canvas) ApplyExternalImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("apply image: nil image")
	}
	c.dropStroke()
	c.surface.DrawImage(img)
	return c.commit(LabelImage)
}

// Undo steps back one entry. It reports false when there is nothing to undo.
func (c *Canvas) Undo(ctx context.Context) (bool, error) {
	if err := c.abandonStroke(ctx); err != nil {
		return false, err
	}
	return c.history.Undo(ctx)
}

// Redo steps forward one entry. It reports false when there is nothing to
// redo.
func (c *Canvas) Redo(ctx context.Context) (bool, error) {
	if err := c.abandonStroke(ctx); err != nil {
		return false, err
	}
	return c.history.Redo(ctx)
}

// Batch runs fn so that every commit it makes collapses into one entry
// labelled label. When fn fails the surface is repainted from the entry at
// the cursor and the error is returned. A Batch inside a Batch joins the
// outer one.
func (c *Canvas) Batch(ctx context.Context, label string, fn func() error) error {
	if c.history.IsGrouping() {
		return fn()
	}
	if err := c.abandonStroke(ctx); err != nil {
		return err
	}

	before, _ := c.history.Current()
	// The revert must run even after ctx is done.
	if err := c.history.Transaction(context.WithoutCancel(ctx), label, fn); err != nil {
		return err
	}
	if after, _ := c.history.Current(); after.ID() != before.ID() {
		c.committed(label)
	}
	return nil
}

func (c *Canvas) commit(label string) error {
	if err := c.history.Commit(label); err != nil {
		return err
	}
	if c.history.IsGrouping() {
		return nil
	}
	c.committed(label)
	return nil
}

func (c *Canvas) committed(label string) {
	c.logger.Debug("committed", "label", label, "len", c.history.Len())
	c.publish(event.TopicCanvasCommitted, event.CanvasCommitted{
		Label: label,
		Len:   c.history.Len(),
	})
}

// dropStroke forgets a stroke in progress and reports whether there was one.
func (c *Canvas) dropStroke() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.drawing
	c.drawing = false
	c.stroke = c.stroke[:0]
	return was
}

// abandonStroke drops a stroke in progress and repaints the displayed entry
// over the segments it already painted.
func (c *Canvas) abandonStroke(ctx context.Context) error {
	if !c.dropStroke() {
		return nil
	}
	if err := c.history.Revert(ctx); err != nil {
		return fmt.Errorf("abandon stroke: %w", err)
	}
	return nil
}

// paintBrushLocked applies the current tool to b. The caller holds c.mu.
func (c *Canvas) paintBrushLocked(b surface.Brush) surface.Brush {
	if c.tool == ToolEraser {
		return b.WithColor(c.surface.Background())
	}
	return b
}

// Brush returns the current brush.
func (c *Canvas) Brush() surface.Brush {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.brush
}

// SetBrush replaces the brush used by later strokes.
func (c *Canvas) SetBrush(b surface.Brush) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.brush = b.WithWidth(b.Width)
}

// Tool returns the selected tool.
func (c *Canvas) Tool() Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tool
}

// SetTool selects the tool used by later strokes.
func (c *Canvas) SetTool(t Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tool = t
}

// State returns the history predicates.
func (c *Canvas) State() history.State {
	return c.history.State()
}

// History returns the history engine for read-only queries.
func (c *Canvas) History() *history.History {
	return c.history
}

// Surface returns the drawing surface.
func (c *Canvas) Surface() *surface.Surface {
	return c.surface
}

// Size returns the surface size.
func (c *Canvas) Size() (int, int) {
	return c.surface.Size()
}

// Export writes the current surface.
func (c *Canvas) Export(w io.Writer, f surface.Format) error {
	return c.surface.Export(w, f)
}

// SaveFile writes the surface to path in the format its extension names.
func (c *Canvas) SaveFile(path string) (err error) {
	format, err := surface.FormatForPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := c.Export(f, format); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}
