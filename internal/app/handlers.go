package app

import (
	"context"
	"fmt"
	"image"
	"runtime/debug"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/dshills/inkwell/internal/canvas"
	"github.com/dshills/inkwell/internal/config"
	"github.com/dshills/inkwell/internal/engine/surface"
	"github.com/dshills/inkwell/internal/event"
	"github.com/dshills/inkwell/internal/palette"
	"github.com/dshills/inkwell/internal/renderer"
	"github.com/dshills/inkwell/internal/renderer/backend"
)

// Brush width limits for the width keys.
const (
	minBrushWidth = 1
	maxBrushWidth = 256
)

// outlineResult is posted by the generation goroutine.
type outlineResult struct {
	prompt string
	img    image.Image
	err    error
}

// configReloaded is posted by the config watcher.
type configReloaded struct {
	cfg *config.Config
}

// handleEvent routes one backend event. It runs on the loop goroutine.
func (app *Application) handleEvent(ev backend.Event) error {
	switch ev.Type {
	case backend.EventKey:
		return app.handleKey(ev)
	case backend.EventMouse:
		return app.handleMouse(ev)
	case backend.EventResize:
		app.backend.Clear()
		return nil
	case backend.EventInterrupt:
		return app.handleInterrupt(ev.Data)
	}
	return nil
}

func (app *Application) handleKey(ev backend.Event) error {
	app.mu.Lock()
	prompting := app.prompting
	app.mu.Unlock()
	if prompting {
		return app.handlePromptKey(ev)
	}

	switch ev.Key {
	case backend.KeyCtrlC, backend.KeyEscape:
		return ErrQuit
	case backend.KeyCtrlZ:
		return app.undo()
	case backend.KeyCtrlY:
		return app.redo()
	case backend.KeyCtrlS:
		return app.export()
	case backend.KeyRune:
		return app.handleRune(ev.Rune)
	}
	return nil
}

func (app *Application) handleRune(r rune) error {
	switch {
	case r == 'q':
		return ErrQuit
	case r == 'u':
		return app.undo()
	case r == 'r':
		return app.redo()
	case r == 'c':
		return app.clear()
	case r == 'e':
		return app.toggleEraser()
	case r >= '1' && r <= '9':
		return app.selectSwatch(int(r - '1'))
	case r == '[':
		return app.adjustBrush(-1)
	case r == ']':
		return app.adjustBrush(1)
	case r == 'p':
		return app.nextScheme()
	case r == 'g':
		return app.startPrompt()
	case r == 's':
		return app.export()
	}
	return nil
}

// undo, redo and clear go through the trigger counters so the UI and
// scripts share one path into history.
func (app *Application) undo() error {
	can := app.canvas.State().CanUndo
	app.canvas.Triggers().RequestUndo()
	if err := app.canvas.Sync(app.ctx); err != nil {
		return err
	}
	if !can {
		app.backend.Beep()
	}
	app.setStatus("", false)
	return nil
}

func (app *Application) redo() error {
	can := app.canvas.State().CanRedo
	app.canvas.Triggers().RequestRedo()
	if err := app.canvas.Sync(app.ctx); err != nil {
		return err
	}
	if !can {
		app.backend.Beep()
	}
	app.setStatus("", false)
	return nil
}

func (app *Application) clear() error {
	app.canvas.Triggers().RequestClear()
	if err := app.canvas.Sync(app.ctx); err != nil {
		return err
	}
	app.setStatus("cleared", false)
	return nil
}

func (app *Application) toggleEraser() error {
	tool := app.canvas.Tool().Toggle()
	app.canvas.SetTool(tool)
	app.setStatus(tool.String(), false)
	return nil
}

// selectSwatch makes palette color i the brush color. Picking a color
// switches back to the brush.
func (app *Application) selectSwatch(i int) error {
	app.mu.Lock()
	if i < 0 || i >= app.palette.Len() || i >= renderer.MaxSwatches {
		app.mu.Unlock()
		app.backend.Beep()
		return nil
	}
	col := app.palette.RGBA(i)
	hex := app.palette.Colors[i]
	app.selected = i
	app.mu.Unlock()

	app.canvas.SetBrush(app.canvas.Brush().WithColor(col))
	app.canvas.SetTool(canvas.ToolBrush)
	app.setStatus("color "+hex, false)
	return nil
}

func (app *Application) adjustBrush(delta float64) error {
	b := app.canvas.Brush()
	w := min(max(b.Width+delta, minBrushWidth), maxBrushWidth)
	app.canvas.SetBrush(b.WithWidth(w))
	app.setStatus(fmt.Sprintf("brush %g", w), false)
	return nil
}

// nextScheme regenerates the palette with the following scheme and makes
// its first color the brush color.
func (app *Application) nextScheme() error {
	app.mu.Lock()
	pc := app.paletteCfg
	app.mu.Unlock()

	scheme, err := palette.ParseScheme(pc.Scheme)
	if err != nil {
		return err
	}
	pc.Scheme = string(scheme.Next())
	p, err := generatePalette(pc)
	if err != nil {
		return NewOperationError("palette", pc.Scheme, err)
	}

	app.mu.Lock()
	app.palette = p
	app.paletteCfg = pc
	app.selected = 0
	app.mu.Unlock()
	app.canvas.SetBrush(app.canvas.Brush().WithColor(p.RGBA(0)))

	app.publish(app.ctx, event.TopicPaletteChanged, event.PaletteChanged{
		Scheme: string(p.Scheme),
		Colors: p.Colors,
	})
	app.setStatus("palette "+p.Scheme.DisplayName(), false)
	return nil
}

func (app *Application) export() error {
	path := app.exportPath()
	if err := app.Export(path); err != nil {
		return err
	}
	app.logger.Info("exported", "path", path)
	app.setStatus("saved "+path, false)
	return nil
}

func (app *Application) startPrompt() error {
	if app.generator == nil {
		app.setStatus(app.outlineUnavailable().Error(), true)
		return nil
	}
	if app.busy.Load() {
		return ErrOutlineBusy
	}

	app.mu.Lock()
	app.prompting = true
	app.prompt = ""
	app.mu.Unlock()
	return nil
}

func (app *Application) handlePromptKey(ev backend.Event) error {
	app.mu.Lock()
	switch ev.Key {
	case backend.KeyEscape, backend.KeyCtrlC:
		app.prompting = false
		app.prompt = ""
		app.mu.Unlock()
		return nil
	case backend.KeyEnter:
		text := strings.TrimSpace(app.prompt)
		app.prompting = false
		app.prompt = ""
		app.mu.Unlock()
		if text == "" {
			return nil
		}
		return app.requestOutline(text)
	case backend.KeyBackspace, backend.KeyDelete:
		app.prompt = dropLastGrapheme(app.prompt)
	case backend.KeyRune:
		app.prompt += string(ev.Rune)
	}
	app.mu.Unlock()
	return nil
}

// dropLastGrapheme removes the last user-perceived character of s.
func dropLastGrapheme(s string) string {
	last, pos := 0, 0
	state := -1
	for rest := s; len(rest) > 0; {
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		last = pos
		pos += len(cluster)
	}
	return s[:last]
}

// requestOutline starts generation on a goroutine. The result comes back
// to the loop as an interrupt event.
func (app *Application) requestOutline(prompt string) error {
	if app.generator == nil {
		return app.outlineUnavailable()
	}
	if !app.busy.CompareAndSwap(false, true) {
		return ErrOutlineBusy
	}

	app.publish(app.ctx, event.TopicOutlineRequested, event.OutlineRequested{Prompt: prompt})
	app.setStatus("", false)

	app.outlines.Add(1)
	go func() {
		defer app.outlines.Done()
		img, err := app.generate(app.ctx, prompt)
		perr := app.backend.PostEvent(backend.Event{
			Type: backend.EventInterrupt,
			Data: outlineResult{prompt: prompt, img: img, err: err},
		})
		if perr != nil {
			app.busy.Store(false)
			app.logger.Warn("outline result dropped", "prompt", prompt, "error", perr)
		}
	}()
	return nil
}

// generate runs the generator and records the request. A panicking
// generator is reported as a RecoveredPanicError.
func (app *Application) generate(ctx context.Context, prompt string) (img image.Image, err error) {
	timer := StartTimer()
	defer func() {
		if r := recover(); r != nil {
			pe := NewRecoveredPanicError(r, string(debug.Stack()))
			app.logger.Error("outline generator panicked", "panic", r, "stack", pe.Stack)
			img, err = nil, pe
		}
		app.metrics.RecordOutline(timer.Elapsed(), err)
	}()
	return app.generator.Generate(ctx, prompt)
}

func (app *Application) handleInterrupt(data any) error {
	switch msg := data.(type) {
	case outlineResult:
		app.busy.Store(false)
		app.finishOutline(msg.prompt, msg.img, msg.err)
	case configReloaded:
		app.applyConfig(app.ctx, msg.cfg)
		app.setStatus("config reloaded", false)
	}
	return nil
}

// finishOutline applies a generated outline. On failure history is left
// alone and one status message is shown.
func (app *Application) finishOutline(prompt string, img image.Image, err error) {
	if err == nil {
		err = app.canvas.ApplyExternalImage(img)
	}
	if err != nil {
		app.publish(app.ctx, event.TopicOutlineFailed, event.OutlineFailed{Prompt: prompt, Err: err})
		app.setStatus(outlineError(prompt, err).Error(), true)
		return
	}

	b := img.Bounds()
	app.publish(app.ctx, event.TopicOutlineCompleted, event.OutlineCompleted{
		Prompt: prompt,
		Width:  b.Dx(),
		Height: b.Dy(),
	})
	app.setStatus("outline applied", false)
}

// outlineError names the failed prompt.
func outlineError(prompt string, err error) *OperationError {
	return NewOperationError("outline", "", err).WithContext(fmt.Sprintf("%q", prompt))
}

func (app *Application) handleMouse(ev backend.Event) error {
	app.mu.Lock()
	dragging := app.dragging
	app.mu.Unlock()

	switch ev.MouseButton {
	case backend.MouseLeft:
		p, onCanvas := app.canvasPoint(ev.MouseX, ev.MouseY)
		if dragging {
			if !onCanvas {
				return nil
			}
			return app.canvas.ExtendStroke(p)
		}
		if i, ok := app.renderer.SwatchAt(ev.MouseX, ev.MouseY); ok {
			return app.selectSwatch(i)
		}
		if !onCanvas {
			return nil
		}
		app.setDragging(true)
		return app.canvas.BeginStroke(p)

	case backend.MouseNone:
		if !dragging {
			return nil
		}
		app.setDragging(false)
		return app.canvas.EndStroke(app.ctx)
	}
	return nil
}

func (app *Application) canvasPoint(x, y int) (surface.Point, bool) {
	if app.renderer == nil {
		return surface.Point{}, false
	}
	return app.renderer.CanvasPoint(x, y)
}

func (app *Application) setDragging(on bool) {
	app.mu.Lock()
	app.dragging = on
	app.mu.Unlock()
}
