package script

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/inkwell/internal/canvas"
	"github.com/dshills/inkwell/internal/engine/surface"
	"github.com/dshills/inkwell/internal/outline"
	"github.com/dshills/inkwell/internal/palette"
)

// PaletteDefaults fills arguments scripts leave out of palette.generate.
type PaletteDefaults struct {
	Scheme palette.Scheme
	Base   string
	Size   int
	Seed   int64
}

// Host exposes a canvas to Lua.
type Host struct {
	Canvas  *canvas.Canvas
	Outline outline.Generator // nil disables outline.generate
	Palette PaletteDefaults

	Logger *slog.Logger
	Output io.Writer
}

// Runner is a state with the host modules installed.
type Runner struct {
	state *State
	host  Host
}

// NewRunner creates a state and installs the canvas, palette and outline
// modules. The canvas must already be open.
func NewRunner(host Host, opts ...StateOption) (*Runner, error) {
	if host.Canvas == nil {
		return nil, fmt.Errorf("script host: nil canvas")
	}
	if host.Logger == nil {
		host.Logger = slog.New(slog.DiscardHandler)
	}
	if host.Palette.Size <= 0 {
		host.Palette.Size = 5
	}
	if host.Palette.Base == "" {
		host.Palette.Base = "#3366cc"
	}
	if host.Palette.Scheme == "" {
		host.Palette.Scheme = palette.Complementary
	}

	r := &Runner{state: NewState(opts...), host: host}
	r.install()
	if host.Outline != nil {
		r.state.Sandbox().Grant(CapabilityNetwork)
	}
	return r, nil
}

// State returns the underlying state.
func (r *Runner) State() *State {
	return r.state
}

// Grant enables a capability for later runs.
func (r *Runner) Grant(c Capability) {
	r.state.Sandbox().Grant(c)
}

// RunFile executes a script file.
func (r *Runner) RunFile(ctx context.Context, path string) error {
	r.host.Logger.Debug("running script", "path", path)
	if err := r.state.DoFile(ctx, path); err != nil {
		return fmt.Errorf("script %s: %w", path, err)
	}
	return nil
}

// RunString executes a script chunk.
func (r *Runner) RunString(ctx context.Context, code string) error {
	return r.state.DoString(ctx, code)
}

// Close releases the state.
func (r *Runner) Close() error {
	return r.state.Close()
}

func (r *Runner) install() {
	r.state.RegisterFunc("print", r.print)

	r.state.RegisterModule("canvas", map[string]lua.LGFunction{
		"stroke":   r.canvasStroke,
		"clear":    r.canvasClear,
		"undo":     r.canvasUndo,
		"redo":     r.canvasRedo,
		"can_undo": r.canvasCanUndo,
		"can_redo": r.canvasCanRedo,
		"history":  r.canvasHistory,
		"brush":    r.canvasBrush,
		"tool":     r.canvasTool,
		"batch":    r.canvasBatch,
		"size":     r.canvasSize,
		"export":   r.canvasExport,
	})

	r.state.RegisterModule("palette", map[string]lua.LGFunction{
		"generate": r.paletteGenerate,
		"schemes":  r.paletteSchemes,
	})

	r.state.RegisterModule("outline", map[string]lua.LGFunction{
		"generate":  r.outlineGenerate,
		"available": r.outlineAvailable,
	})
}

func contextOf(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (r *Runner) print(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	line := strings.Join(parts, "\t")

	r.host.Logger.Info(line, "component", "script")
	if r.host.Output != nil {
		fmt.Fprintln(r.host.Output, line)
	}
	return 0
}

// canvas.stroke(points, [opts])
func (r *Runner) canvasStroke(L *lua.LState) int {
	tbl := L.CheckTable(1)
	brush := r.host.Canvas.Brush()
	if opts, ok := L.Get(2).(*lua.LTable); ok {
		brush = brushFromTable(L, opts, brush)
	}

	var pts []surface.Point
	tbl.ForEach(func(_, v lua.LValue) {
		pt, ok := v.(*lua.LTable)
		if !ok {
			L.ArgError(1, "points must be {x, y} tables")
		}
		pts = append(pts, surface.Point{
			X: float64(lua.LVAsNumber(pt.RawGetInt(1))),
			Y: float64(lua.LVAsNumber(pt.RawGetInt(2))),
		})
	})
	if len(pts) == 0 {
		L.ArgError(1, "stroke needs at least one point")
	}

	if err := r.host.Canvas.DrawStroke(contextOf(L), surface.Stroke{Points: pts, Brush: brush}); err != nil {
		L.RaiseError("stroke: %v", err)
	}
	return 0
}

func brushFromTable(L *lua.LState, opts *lua.LTable, brush surface.Brush) surface.Brush {
	if v, ok := opts.RawGetString("color").(lua.LString); ok {
		c, err := surface.ParseHex(string(v))
		if err != nil {
			L.ArgError(2, err.Error())
		}
		brush = brush.WithColor(c)
	}
	if v, ok := opts.RawGetString("width").(lua.LNumber); ok {
		brush = brush.WithWidth(float64(v))
	}
	return brush
}

func (r *Runner) canvasClear(L *lua.LState) int {
	if err := r.host.Canvas.Clear(contextOf(L)); err != nil {
		L.RaiseError("clear: %v", err)
	}
	return 0
}

func (r *Runner) canvasUndo(L *lua.LState) int {
	ok, err := r.host.Canvas.Undo(contextOf(L))
	if err != nil {
		L.RaiseError("undo: %v", err)
	}
	L.Push(lua.LBool(ok))
	return 1
}

func (r *Runner) canvasRedo(L *lua.LState) int {
	ok, err := r.host.Canvas.Redo(contextOf(L))
	if err != nil {
		L.RaiseError("redo: %v", err)
	}
	L.Push(lua.LBool(ok))
	return 1
}

func (r *Runner) canvasCanUndo(L *lua.LState) int {
	L.Push(lua.LBool(r.host.Canvas.State().CanUndo))
	return 1
}

func (r *Runner) canvasCanRedo(L *lua.LState) int {
	L.Push(lua.LBool(r.host.Canvas.State().CanRedo))
	return 1
}

// canvas.history() returns the length, the cursor and the entry labels.
func (r *Runner) canvasHistory(L *lua.LState) int {
	st := r.host.Canvas.State()
	entries := r.host.Canvas.History().Entries()
	labels := L.CreateTable(len(entries), 0)
	for _, e := range entries {
		labels.Append(lua.LString(e.Label))
	}
	L.Push(lua.LNumber(st.Len))
	L.Push(lua.LNumber(st.Cursor))
	L.Push(labels)
	return 3
}

// canvas.tool([name]) selects "brush" or "eraser" and returns the tool.
func (r *Runner) canvasTool(L *lua.LState) int {
	if s, ok := L.Get(1).(lua.LString); ok {
		t, err := canvas.ParseTool(string(s))
		if err != nil {
			L.ArgError(1, err.Error())
		}
		r.host.Canvas.SetTool(t)
	}
	L.Push(lua.LString(r.host.Canvas.Tool().String()))
	return 1
}

// canvas.batch(fn, [label]) records everything fn draws as one entry. An
// error raised inside fn reverts the canvas and is raised again.
func (r *Runner) canvasBatch(L *lua.LState) int {
	fn := L.CheckFunction(1)
	label := L.OptString(2, canvas.LabelBatch)

	err := r.host.Canvas.Batch(contextOf(L), label, func() error {
		return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
	})
	if err != nil {
		L.RaiseError("batch: %v", err)
	}
	return 0
}

// canvas.brush([color], [width]) returns the current color and width.
func (r *Runner) canvasBrush(L *lua.LState) int {
	brush := r.host.Canvas.Brush()
	if s, ok := L.Get(1).(lua.LString); ok {
		c, err := surface.ParseHex(string(s))
		if err != nil {
			L.ArgError(1, err.Error())
		}
		brush = brush.WithColor(c)
	}
	if n, ok := L.Get(2).(lua.LNumber); ok {
		brush = brush.WithWidth(float64(n))
	}
	r.host.Canvas.SetBrush(brush)

	brush = r.host.Canvas.Brush()
	L.Push(lua.LString(brush.Hex()))
	L.Push(lua.LNumber(brush.Width))
	return 2
}

func (r *Runner) canvasSize(L *lua.LState) int {
	w, h := r.host.Canvas.Size()
	L.Push(lua.LNumber(w))
	L.Push(lua.LNumber(h))
	return 2
}

// canvas.export(path) returns true, or nil and an error message.
func (r *Runner) canvasExport(L *lua.LState) int {
	path := L.CheckString(1)
	if !r.state.Sandbox().HasCapability(CapabilityFileWrite) {
		L.RaiseError("export: %v: %s", ErrCapabilityDenied, CapabilityFileWrite)
	}

	if err := r.host.Canvas.SaveFile(path); err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	r.host.Logger.Info("exported", "component", "script", "path", path)
	L.Push(lua.LTrue)
	return 1
}

// palette.generate([scheme], [base], [n], [seed])
func (r *Runner) paletteGenerate(L *lua.LState) int {
	d := r.host.Palette
	scheme := palette.Scheme(L.OptString(1, string(d.Scheme)))
	base := L.OptString(2, d.Base)
	n := L.OptInt(3, d.Size)
	seed := L.OptInt64(4, d.Seed)

	p, err := palette.Generate(scheme, base, n, seed)
	if err != nil {
		L.RaiseError("palette: %v", err)
	}

	out := L.CreateTable(len(p.Colors), 0)
	for _, c := range p.Colors {
		out.Append(lua.LString(c))
	}
	L.Push(out)
	return 1
}

func (r *Runner) paletteSchemes(L *lua.LState) int {
	schemes := palette.Schemes()
	out := L.CreateTable(len(schemes), 0)
	for _, s := range schemes {
		out.Append(lua.LString(s))
	}
	L.Push(out)
	return 1
}

func (r *Runner) outlineAvailable(L *lua.LState) int {
	L.Push(lua.LBool(r.host.Outline != nil))
	return 1
}

// outline.generate(prompt) returns true, or false and an error message.
// A failed request leaves the canvas untouched.
func (r *Runner) outlineGenerate(L *lua.LState) int {
	prompt := L.CheckString(1)
	if r.host.Outline == nil || !r.state.Sandbox().HasCapability(CapabilityNetwork) {
		L.Push(lua.LFalse)
		L.Push(lua.LString(outline.ErrNoProvider.Error()))
		return 2
	}

	img, err := r.host.Outline.Generate(contextOf(L), prompt)
	if err != nil {
		r.host.Logger.Warn("outline failed", "component", "script", "error", err)
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	if err := r.host.Canvas.ApplyExternalImage(img); err != nil {
		L.RaiseError("apply outline: %v", err)
	}
	L.Push(lua.LTrue)
	return 1
}
