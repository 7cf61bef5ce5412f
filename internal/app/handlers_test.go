package app

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/inkwell/internal/canvas"
	"github.com/dshills/inkwell/internal/config"
	"github.com/dshills/inkwell/internal/event"
	"github.com/dshills/inkwell/internal/outline"
	"github.com/dshills/inkwell/internal/palette"
	"github.com/dshills/inkwell/internal/renderer/backend"
)

func runeKey(r rune) backend.Event {
	return backend.Event{Type: backend.EventKey, Key: backend.KeyRune, Rune: r}
}

func specialKey(k backend.Key) backend.Event {
	return backend.Event{Type: backend.EventKey, Key: k}
}

func mouse(x, y int, b backend.MouseButton) backend.Event {
	return backend.Event{Type: backend.EventMouse, MouseX: x, MouseY: y, MouseButton: b}
}

func press(t *testing.T, app *Application, events ...backend.Event) {
	t.Helper()
	for _, ev := range events {
		if err := app.handleEvent(ev); err != nil {
			t.Fatalf("handleEvent(%+v) error = %v", ev, err)
		}
	}
}

// drag draws a stroke across the middle of the preview.
func drag(t *testing.T, app *Application) {
	t.Helper()
	for _, c := range [][2]int{{30, 12}, {50, 12}} {
		if _, ok := app.renderer.CanvasPoint(c[0], c[1]); !ok {
			t.Fatalf("cell %v is outside the preview", c)
		}
	}
	press(t, app,
		mouse(30, 12, backend.MouseLeft),
		mouse(40, 12, backend.MouseLeft),
		mouse(50, 12, backend.MouseLeft),
		mouse(50, 12, backend.MouseNone),
	)
}

// recordTopics counts published events matching pattern.
func recordTopics(t *testing.T, bus event.Bus, pattern event.Topic) func() []event.Event {
	t.Helper()
	var mu sync.Mutex
	var seen []event.Event
	_, err := bus.SubscribeFunc(pattern, func(_ context.Context, ev event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("SubscribeFunc() error = %v", err)
	}
	return func() []event.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]event.Event(nil), seen...)
	}
}

func solidImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+3] = 0xff
	}
	return img
}

func TestDragCommitsOneStroke(t *testing.T) {
	app, _ := newInteractive(t, Options{})
	blank := app.Canvas().Surface().Image()

	drag(t, app)

	st := app.Canvas().State()
	if st.Len != 2 || st.Cursor != 1 || !st.CanUndo {
		t.Errorf("state after drag = %+v", st)
	}
	if app.Canvas().Drawing() {
		t.Error("stroke still in progress after release")
	}
	if string(app.Canvas().Surface().Image().Pix) == string(blank.Pix) {
		t.Error("drag did not paint")
	}
}

func TestReleaseOutsideDragIsIgnored(t *testing.T) {
	app, _ := newInteractive(t, Options{})
	press(t, app, mouse(40, 12, backend.MouseNone), mouse(0, 0, backend.MouseRight))
	if st := app.Canvas().State(); st.Len != 1 {
		t.Errorf("history len = %d, want 1", st.Len)
	}
}

func TestUndoRedoClearKeys(t *testing.T) {
	app, nb := newInteractive(t, Options{})
	drag(t, app)
	press(t, app, runeKey('c'))

	steps := []struct {
		ev     backend.Event
		cursor int
		beeps  int
	}{
		{runeKey('u'), 1, 0},
		{runeKey('u'), 0, 0},
		{runeKey('u'), 0, 1},
		{runeKey('r'), 1, 1},
		{specialKey(backend.KeyCtrlZ), 0, 1},
		{specialKey(backend.KeyCtrlY), 1, 1},
		{runeKey('r'), 2, 1},
		{runeKey('r'), 2, 2},
	}
	for i, s := range steps {
		press(t, app, s.ev)
		st := app.Canvas().State()
		if st.Cursor != s.cursor || st.Len != 3 {
			t.Fatalf("step %d: state = %+v, want cursor %d len 3", i, st, s.cursor)
		}
		if nb.Beeps() != s.beeps {
			t.Fatalf("step %d: beeps = %d, want %d", i, nb.Beeps(), s.beeps)
		}
	}
}

func TestEditAfterUndoTruncates(t *testing.T) {
	app, _ := newInteractive(t, Options{})
	drag(t, app)
	press(t, app, runeKey('c'), runeKey('u'), runeKey('u'))

	drag(t, app)
	st := app.Canvas().State()
	if st.Len != 2 || st.Cursor != 1 || st.CanRedo {
		t.Errorf("state after new edit = %+v, want len 2 cursor 1 no redo", st)
	}
}

func TestQuitKeys(t *testing.T) {
	app, _ := newInteractive(t, Options{})
	for _, ev := range []backend.Event{runeKey('q'), specialKey(backend.KeyEscape), specialKey(backend.KeyCtrlC)} {
		if err := app.handleEvent(ev); !errors.Is(err, ErrQuit) {
			t.Errorf("handleEvent(%+v) error = %v, want ErrQuit", ev, err)
		}
	}
}

func TestSwatchKeys(t *testing.T) {
	app, nb := newInteractive(t, Options{})
	p, _ := app.Palette()

	press(t, app, runeKey('2'))
	if _, sel := app.Palette(); sel != 1 {
		t.Errorf("selected = %d, want 1", sel)
	}
	if got := app.Canvas().Brush().Color; got != p.RGBA(1) {
		t.Errorf("brush color = %v, want %v", got, p.RGBA(1))
	}

	press(t, app, runeKey('9'))
	if _, sel := app.Palette(); sel != 1 {
		t.Errorf("selected = %d after out of range key, want 1", sel)
	}
	if nb.Beeps() != 1 {
		t.Errorf("beeps = %d, want 1", nb.Beeps())
	}
}

func TestEraserKey(t *testing.T) {
	app, _ := newInteractive(t, Options{})
	drag(t, app)
	p, ok := app.renderer.CanvasPoint(40, 12)
	if !ok {
		t.Fatal("cell outside preview")
	}
	if c := app.Canvas().Surface().At(int(p.X), int(p.Y)); c == (color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Fatal("stroke not painted")
	}

	press(t, app, runeKey(']'), runeKey(']'), runeKey(']'), runeKey('e'))
	if app.Canvas().Tool() != canvas.ToolEraser || app.view().Tool != "eraser" {
		t.Fatalf("tool = %v, want eraser", app.Canvas().Tool())
	}
	if msg, _ := app.Status(); msg != "eraser" {
		t.Errorf("status = %q", msg)
	}
	drag(t, app)
	if c := app.Canvas().Surface().At(int(p.X), int(p.Y)); c != (color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Errorf("erased pixel = %v, want background", c)
	}
	if st := app.Canvas().State(); st.Len != 3 {
		t.Errorf("history len = %d, want 3", st.Len)
	}

	press(t, app, runeKey('e'))
	if app.Canvas().Tool() != canvas.ToolBrush {
		t.Error("second e did not switch back to the brush")
	}
	press(t, app, runeKey('e'), runeKey('1'))
	if app.Canvas().Tool() != canvas.ToolBrush {
		t.Error("picking a swatch kept the eraser")
	}
}

func TestUndoWhileDragging(t *testing.T) {
	app, _ := newInteractive(t, Options{})
	blank := app.Canvas().Surface().Image()

	press(t, app,
		mouse(30, 12, backend.MouseLeft),
		mouse(45, 14, backend.MouseLeft),
		runeKey('u'),
		mouse(50, 12, backend.MouseLeft),
		mouse(50, 12, backend.MouseNone),
	)

	if string(app.Canvas().Surface().Image().Pix) != string(blank.Pix) {
		t.Error("aborted stroke left pixels on the canvas")
	}
	if st := app.Canvas().State(); st.Len != 1 {
		t.Errorf("history len = %d, want 1", st.Len)
	}
}

func TestSwatchClick(t *testing.T) {
	app, _ := newInteractive(t, Options{})

	// The first swatch follows the " inkwell " title on row 0.
	x := -1
	for col := 0; col < 80; col++ {
		if i, ok := app.renderer.SwatchAt(col, 0); ok && i == 2 {
			x = col
			break
		}
	}
	if x < 0 {
		t.Fatal("third swatch not drawn")
	}

	press(t, app, mouse(x, 0, backend.MouseLeft), mouse(x, 0, backend.MouseNone))
	if _, sel := app.Palette(); sel != 2 {
		t.Errorf("selected = %d, want 2", sel)
	}
	if st := app.Canvas().State(); st.Len != 1 {
		t.Errorf("swatch click changed history: %+v", st)
	}
}

func TestBrushWidthKeys(t *testing.T) {
	tests := []struct {
		name  string
		start float64
		keys  string
		want  float64
	}{
		{"grow", 4, "]]", 6},
		{"shrink", 4, "[", 3},
		{"floor", 1, "[[", 1},
		{"ceiling", 256, "]", 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			overrides := smallCanvas()
			overrides["brush.width"] = tt.start
			app, _ := newInteractive(t, Options{Overrides: overrides})
			for _, r := range tt.keys {
				press(t, app, runeKey(r))
			}
			if got := app.Canvas().Brush().Width; got != tt.want {
				t.Errorf("brush width = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextSchemeKey(t *testing.T) {
	app, _ := newInteractive(t, Options{})
	seen := recordTopics(t, app.Bus(), event.TopicPaletteChanged)
	before, _ := app.Palette()

	press(t, app, runeKey('2'), runeKey('p'))

	after, sel := app.Palette()
	if after.Scheme != before.Scheme.Next() {
		t.Errorf("scheme = %v, want %v", after.Scheme, before.Scheme.Next())
	}
	if sel != 0 {
		t.Errorf("selected = %d after scheme change, want 0", sel)
	}
	if b := app.Canvas().Brush(); b.Color != after.RGBA(0) {
		t.Errorf("brush color = %v, want first swatch %v", b.Color, after.RGBA(0))
	}
	evs := seen()
	if len(evs) != 1 {
		t.Fatalf("palette.changed published %d times, want 1", len(evs))
	}
	if p := evs[0].Payload.(event.PaletteChanged); p.Scheme != string(after.Scheme) || len(p.Colors) != after.Len() {
		t.Errorf("payload = %+v", p)
	}
}

func TestExportKey(t *testing.T) {
	out := filepath.Join(t.TempDir(), "drawing.png")
	app, _ := newInteractive(t, Options{OutPath: out})
	drag(t, app)

	press(t, app, runeKey('s'))
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("export missing: %v", err)
	}
	if msg, isErr := app.Status(); isErr || !strings.Contains(msg, out) {
		t.Errorf("status = %q (error %v)", msg, isErr)
	}
}

func TestExportKeyTimestamped(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	app, _ := newInteractive(t, Options{})
	tick := time.UnixMilli(1700000000000)
	app.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	press(t, app, runeKey('s'), specialKey(backend.KeyCtrlS))

	for _, name := range []string{"artwork-1700000001000.png", "artwork-1700000002000.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("export %s missing: %v", name, err)
		}
	}
	if msg, _ := app.Status(); msg != "saved artwork-1700000002000.png" {
		t.Errorf("status = %q", msg)
	}
}

func TestExportKeyFailure(t *testing.T) {
	out := filepath.Join(t.TempDir(), "drawing.gif")
	app, _ := newInteractive(t, Options{OutPath: out})

	err := app.handleEvent(specialKey(backend.KeyCtrlS))
	var oe *OperationError
	if !errors.As(err, &oe) || oe.Op != "export" {
		t.Fatalf("export error = %v, want export OperationError", err)
	}
	app.reportError(err)
	if _, isErr := app.Status(); !isErr {
		t.Error("status not marked as error")
	}
}

func TestPromptWithoutProvider(t *testing.T) {
	app, _ := newInteractive(t, Options{})
	press(t, app, runeKey('g'))

	msg, isErr := app.Status()
	if !isErr || msg != outline.ErrNoProvider.Error() {
		t.Errorf("status = %q (error %v)", msg, isErr)
	}
	if app.view().Prompting {
		t.Error("prompt opened without provider")
	}
}

func TestPromptEditing(t *testing.T) {
	gen := outline.GeneratorFunc(func(context.Context, string) (image.Image, error) {
		return solidImage(4, 4), nil
	})
	app, _ := newInteractive(t, Options{Outline: gen})

	press(t, app, runeKey('g'), runeKey('c'), runeKey('a'), runeKey('t'), specialKey(backend.KeyBackspace))
	v := app.view()
	if !v.Prompting || v.Prompt != "ca" {
		t.Errorf("prompt = %q (prompting %v), want \"ca\"", v.Prompt, v.Prompting)
	}

	// Keys that normally edit the canvas go to the prompt.
	press(t, app, runeKey('u'), runeKey('q'))
	if v := app.view(); v.Prompt != "cauq" {
		t.Errorf("prompt = %q, want \"cauq\"", v.Prompt)
	}

	press(t, app, specialKey(backend.KeyEscape))
	if v := app.view(); v.Prompting || v.Prompt != "" {
		t.Errorf("escape left prompt %q open=%v", v.Prompt, v.Prompting)
	}
	if app.busy.Load() {
		t.Error("escape started a request")
	}
}

func TestOutlineApplied(t *testing.T) {
	var got string
	gen := outline.GeneratorFunc(func(_ context.Context, prompt string) (image.Image, error) {
		got = prompt
		return solidImage(20, 10), nil
	})
	app, nb := newInteractive(t, Options{Outline: gen})
	seen := recordTopics(t, app.Bus(), "outline.*")

	press(t, app, runeKey('g'))
	for _, r := range " a cat " {
		press(t, app, runeKey(r))
	}
	press(t, app, specialKey(backend.KeyEnter))
	if !app.view().Busy {
		t.Error("view not busy while generating")
	}

	ev := nb.PollEvent()
	if ev.Type != backend.EventInterrupt {
		t.Fatalf("event = %+v, want interrupt", ev)
	}
	press(t, app, ev)

	if got != "a cat" {
		t.Errorf("prompt sent = %q, want \"a cat\"", got)
	}
	if st := app.Canvas().State(); st.Len != 2 || st.Cursor != 1 {
		t.Errorf("state = %+v, want one image entry", st)
	}
	if c := app.Canvas().Surface().At(20, 10); c.R > 0x10 {
		t.Errorf("center pixel = %v, want dark outline image", c)
	}
	if msg, isErr := app.Status(); isErr || msg != "outline applied" {
		t.Errorf("status = %q (error %v)", msg, isErr)
	}
	if app.busy.Load() {
		t.Error("still busy after result")
	}

	evs := seen()
	if len(evs) != 2 || evs[0].Topic != event.TopicOutlineRequested || evs[1].Topic != event.TopicOutlineCompleted {
		t.Fatalf("outline events = %+v", evs)
	}
	if c := evs[1].Payload.(event.OutlineCompleted); c.Width != 20 || c.Height != 10 {
		t.Errorf("completed payload = %+v", c)
	}
	if s := app.Metrics().Snapshot(); s.OutlineCount != 1 || s.OutlineFailed != 0 {
		t.Errorf("outline metrics = %+v", s)
	}
}

func TestOutlineFailureLeavesHistory(t *testing.T) {
	boom := errors.New("quota exceeded")
	gen := outline.GeneratorFunc(func(context.Context, string) (image.Image, error) {
		return nil, boom
	})
	app, nb := newInteractive(t, Options{Outline: gen})
	drag(t, app)
	before := app.Canvas().Surface().Image()
	seen := recordTopics(t, app.Bus(), event.TopicOutlineFailed)

	if err := app.requestOutline("tree"); err != nil {
		t.Fatalf("requestOutline() error = %v", err)
	}
	press(t, app, nb.PollEvent())

	if st := app.Canvas().State(); st.Len != 2 || st.Cursor != 1 {
		t.Errorf("state = %+v, want unchanged", st)
	}
	if string(app.Canvas().Surface().Image().Pix) != string(before.Pix) {
		t.Error("failed outline changed the surface")
	}
	msg, isErr := app.Status()
	if !isErr || !strings.Contains(msg, "quota exceeded") {
		t.Errorf("status = %q (error %v)", msg, isErr)
	}
	evs := seen()
	if len(evs) != 1 || !errors.Is(evs[0].Payload.(event.OutlineFailed).Err, boom) {
		t.Errorf("failed events = %+v", evs)
	}
}

func TestOutlineBusy(t *testing.T) {
	release := make(chan struct{})
	gen := outline.GeneratorFunc(func(ctx context.Context, _ string) (image.Image, error) {
		select {
		case <-release:
			return solidImage(4, 4), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	app, nb := newInteractive(t, Options{Outline: gen})

	if err := app.requestOutline("one"); err != nil {
		t.Fatalf("requestOutline() error = %v", err)
	}
	if err := app.requestOutline("two"); !errors.Is(err, ErrOutlineBusy) {
		t.Errorf("second request error = %v, want ErrOutlineBusy", err)
	}
	if err := app.handleEvent(runeKey('g')); !errors.Is(err, ErrOutlineBusy) {
		t.Errorf("prompt while busy error = %v, want ErrOutlineBusy", err)
	}

	close(release)
	press(t, app, nb.PollEvent())
	if app.busy.Load() {
		t.Error("still busy after result")
	}
	if st := app.Canvas().State(); st.Len != 2 {
		t.Errorf("history len = %d, want 2", st.Len)
	}
}

func TestOutlineResultDropped(t *testing.T) {
	gen := outline.GeneratorFunc(func(context.Context, string) (image.Image, error) {
		return solidImage(4, 4), nil
	})
	app, nb := newInteractive(t, Options{Outline: gen})
	for nb.PostEvent(backend.Event{Type: backend.EventResize}) == nil {
	}

	if err := app.requestOutline("lost"); err != nil {
		t.Fatalf("requestOutline() error = %v", err)
	}
	app.outlines.Wait()
	if app.busy.Load() {
		t.Fatal("busy stuck after the result was dropped")
	}
	if err := app.handleEvent(runeKey('g')); err != nil {
		t.Errorf("prompt after dropped result error = %v", err)
	}
}

func TestOutlinePanicRecovered(t *testing.T) {
	gen := outline.GeneratorFunc(func(context.Context, string) (image.Image, error) {
		panic("kaboom")
	})
	app, nb := newInteractive(t, Options{Outline: gen})

	if err := app.requestOutline("tree"); err != nil {
		t.Fatalf("requestOutline() error = %v", err)
	}
	ev := nb.PollEvent()
	res, ok := ev.Data.(outlineResult)
	var pe *RecoveredPanicError
	if !ok || !errors.As(res.err, &pe) || pe.Value != "kaboom" || pe.Stack == "" {
		t.Fatalf("result = %+v, want RecoveredPanicError", ev.Data)
	}
	press(t, app, ev)

	msg, isErr := app.Status()
	if !isErr || !strings.Contains(msg, "panic: kaboom") || !strings.Contains(msg, `"tree"`) {
		t.Errorf("status = %q (error %v)", msg, isErr)
	}
	if st := app.Canvas().State(); st.Len != 1 {
		t.Errorf("history len = %d, want 1", st.Len)
	}
	if s := app.Metrics().Snapshot(); s.OutlineFailed != 1 {
		t.Errorf("OutlineFailed = %d, want 1", s.OutlineFailed)
	}
}

func TestCloseCancelsOutline(t *testing.T) {
	started := make(chan struct{})
	gen := outline.GeneratorFunc(func(ctx context.Context, _ string) (image.Image, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	app, _ := newInteractive(t, Options{Outline: gen})

	if err := app.requestOutline("slow"); err != nil {
		t.Fatalf("requestOutline() error = %v", err)
	}
	<-started
	closeApp(t, app)
	if s := app.Metrics().Snapshot(); s.OutlineFailed != 1 {
		t.Errorf("OutlineFailed = %d, want 1", s.OutlineFailed)
	}
}

func TestConfigReloadInterrupt(t *testing.T) {
	app, _ := newInteractive(t, Options{})
	seen := recordTopics(t, app.Bus(), event.TopicPaletteChanged)

	cfg := config.Default()
	cfg.Brush.Color = "#ff0000"
	cfg.Brush.Width = 12
	cfg.Palette.Scheme = string(palette.Triadic)
	cfg.Palette.Size = 3

	press(t, app, backend.Event{Type: backend.EventInterrupt, Data: configReloaded{cfg: cfg}})

	b := app.Canvas().Brush()
	if b.Color != (color.RGBA{R: 0xff, A: 0xff}) || b.Width != 12 {
		t.Errorf("brush = %+v", b)
	}
	if p, _ := app.Palette(); p.Scheme != palette.Triadic || p.Len() != 3 {
		t.Errorf("palette = %+v", p)
	}
	if len(seen()) != 1 {
		t.Errorf("palette.changed published %d times, want 1", len(seen()))
	}
	if msg, _ := app.Status(); msg != "config reloaded" {
		t.Errorf("status = %q", msg)
	}
}

func TestResizeClears(t *testing.T) {
	app, nb := newInteractive(t, Options{})
	nb.Resize(100, 30)
	press(t, app, nb.PollEvent())
	app.draw()
	if _, ok := app.renderer.CanvasPoint(50, 15); !ok {
		t.Error("center cell outside preview after resize")
	}
}

func TestDropLastGrapheme(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "ab"},
		{"é", ""},
		{"aé", "a"},
		{"x🇩🇪", "x"},
		{"🇩🇪x", "🇩🇪"},
	}
	for _, tt := range tests {
		if got := dropLastGrapheme(tt.in); got != tt.want {
			t.Errorf("dropLastGrapheme(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
