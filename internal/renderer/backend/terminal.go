package backend

import (
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/inkwell/internal/renderer/core"
)

// Terminal implements Backend using tcell for terminal output.
type Terminal struct {
	screen tcell.Screen
	mu     sync.Mutex
}

// NewTerminal creates a new terminal backend.
func NewTerminal() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return &Terminal{screen: screen}, nil
}

// newTerminalWithScreen wraps an existing screen, such as a simulation
// screen in tests.
func newTerminalWithScreen(screen tcell.Screen) *Terminal {
	return &Terminal{screen: screen}
}

func (t *Terminal) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.screen.Init(); err != nil {
		return err
	}

	// Drawing needs drag reports
	t.screen.EnableMouse(tcell.MouseButtonEvents, tcell.MouseDragEvents)
	t.screen.HideCursor()
	return nil
}

func (t *Terminal) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Fini()
}

func (t *Terminal) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.screen.Size()
}

func (t *Terminal) SetCell(x, y int, cell core.Cell) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.SetContent(x, y, cell.Rune, cell.Combining, convertStyle(cell.Style))
}

func (t *Terminal) GetCell(x, y int) core.Cell {
	t.mu.Lock()
	defer t.mu.Unlock()

	mainc, comb, style, width := t.screen.GetContent(x, y) //nolint:staticcheck // GetContent is the correct API
	return core.Cell{
		Rune:      mainc,
		Combining: comb,
		Width:     width,
		Style:     convertTcellStyle(style),
	}
}

func (t *Terminal) Fill(rect core.ScreenRect, cell core.Cell) {
	t.mu.Lock()
	defer t.mu.Unlock()

	style := convertStyle(cell.Style)
	width, height := t.screen.Size()

	for y := max(rect.Top, 0); y < rect.Bottom && y < height; y++ {
		for x := max(rect.Left, 0); x < rect.Right && x < width; x++ {
			t.screen.SetContent(x, y, cell.Rune, nil, style)
		}
	}
}

func (t *Terminal) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Clear()
}

func (t *Terminal) Show() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Show()
}

func (t *Terminal) PollEvent() Event {
	ev := t.screen.PollEvent()
	if ev == nil {
		// Screen finalized
		return Event{Type: EventNone}
	}
	return convertEvent(ev)
}

func (t *Terminal) PostEvent(event Event) error {
	var tev tcell.Event
	switch event.Type {
	case EventKey:
		tev = tcell.NewEventKey(convertToTcellKey(event.Key), event.Rune, convertToTcellMod(event.Mod))
	case EventInterrupt:
		tev = tcell.NewEventInterrupt(event.Data)
	default:
		return nil
	}
	if err := t.screen.PostEvent(tev); err != nil {
		return ErrEventQueueFull
	}
	return nil
}

func (t *Terminal) HasTrueColor() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.screen.Colors() > 256
}

func (t *Terminal) Beep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	_ = t.screen.Beep() // best-effort; terminal may not support beep
}

func (t *Terminal) EnableMouse() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.EnableMouse(tcell.MouseButtonEvents, tcell.MouseDragEvents)
}

func (t *Terminal) DisableMouse() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.DisableMouse()
}

// convertStyle converts our Style to tcell.Style.
func convertStyle(s core.Style) tcell.Style {
	style := tcell.StyleDefault

	if !s.Foreground.IsDefault() {
		style = style.Foreground(tcell.NewRGBColor(int32(s.Foreground.R), int32(s.Foreground.G), int32(s.Foreground.B)))
	}
	if !s.Background.IsDefault() {
		style = style.Background(tcell.NewRGBColor(int32(s.Background.R), int32(s.Background.G), int32(s.Background.B)))
	}

	if s.Attributes.Has(core.AttrBold) {
		style = style.Bold(true)
	}
	if s.Attributes.Has(core.AttrDim) {
		style = style.Dim(true)
	}
	if s.Attributes.Has(core.AttrUnderline) {
		style = style.Underline(true)
	}
	if s.Attributes.Has(core.AttrReverse) {
		style = style.Reverse(true)
	}

	return style
}

// convertTcellStyle converts tcell.Style back to our Style.
func convertTcellStyle(ts tcell.Style) core.Style {
	fg, bg, attrs := ts.Decompose()

	s := core.Style{
		Foreground: convertTcellColor(fg),
		Background: convertTcellColor(bg),
		Attributes: core.AttrNone,
	}

	if attrs&tcell.AttrBold != 0 {
		s.Attributes |= core.AttrBold
	}
	if attrs&tcell.AttrDim != 0 {
		s.Attributes |= core.AttrDim
	}
	if attrs&tcell.AttrUnderline != 0 {
		s.Attributes |= core.AttrUnderline
	}
	if attrs&tcell.AttrReverse != 0 {
		s.Attributes |= core.AttrReverse
	}

	return s
}

// convertTcellColor converts tcell.Color to our Color.
func convertTcellColor(tc tcell.Color) core.Color {
	if tc == tcell.ColorDefault {
		return core.ColorDefault
	}
	r, g, b := tc.RGB()
	return core.ColorFromRGB(uint8(r), uint8(g), uint8(b))
}

// convertEvent converts tcell events to our Event type.
func convertEvent(ev tcell.Event) Event {
	switch e := ev.(type) {
	case *tcell.EventKey:
		return Event{
			Type: EventKey,
			Key:  convertKey(e.Key()),
			Rune: e.Rune(),
			Mod:  convertMod(e.Modifiers()),
		}

	case *tcell.EventMouse:
		x, y := e.Position()
		return Event{
			Type:        EventMouse,
			MouseX:      x,
			MouseY:      y,
			MouseButton: convertMouseButton(e.Buttons()),
			Mod:         convertMod(e.Modifiers()),
		}

	case *tcell.EventResize:
		w, h := e.Size()
		return Event{
			Type:   EventResize,
			Width:  w,
			Height: h,
		}

	case *tcell.EventInterrupt:
		return Event{
			Type: EventInterrupt,
			Data: e.Data(),
		}

	default:
		return Event{Type: EventNone}
	}
}

// convertKey converts tcell key to our Key type.
func convertKey(k tcell.Key) Key {
	switch k {
	case tcell.KeyRune:
		return KeyRune
	case tcell.KeyEscape:
		return KeyEscape
	case tcell.KeyEnter:
		return KeyEnter
	case tcell.KeyTab:
		return KeyTab
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return KeyBackspace
	case tcell.KeyDelete:
		return KeyDelete
	case tcell.KeyUp:
		return KeyUp
	case tcell.KeyDown:
		return KeyDown
	case tcell.KeyLeft:
		return KeyLeft
	case tcell.KeyRight:
		return KeyRight
	case tcell.KeyCtrlC:
		return KeyCtrlC
	case tcell.KeyCtrlS:
		return KeyCtrlS
	case tcell.KeyCtrlY:
		return KeyCtrlY
	case tcell.KeyCtrlZ:
		return KeyCtrlZ
	default:
		return KeyNone
	}
}

// convertToTcellKey converts our Key to tcell.Key.
func convertToTcellKey(k Key) tcell.Key {
	switch k {
	case KeyEscape:
		return tcell.KeyEscape
	case KeyEnter:
		return tcell.KeyEnter
	case KeyTab:
		return tcell.KeyTab
	case KeyBackspace:
		return tcell.KeyBackspace2
	case KeyDelete:
		return tcell.KeyDelete
	case KeyUp:
		return tcell.KeyUp
	case KeyDown:
		return tcell.KeyDown
	case KeyLeft:
		return tcell.KeyLeft
	case KeyRight:
		return tcell.KeyRight
	case KeyCtrlC:
		return tcell.KeyCtrlC
	case KeyCtrlS:
		return tcell.KeyCtrlS
	case KeyCtrlY:
		return tcell.KeyCtrlY
	case KeyCtrlZ:
		return tcell.KeyCtrlZ
	default:
		return tcell.KeyRune
	}
}

// convertMod converts tcell modifier mask to our ModMask.
func convertMod(m tcell.ModMask) ModMask {
	var result ModMask
	if m&tcell.ModShift != 0 {
		result |= ModShift
	}
	if m&tcell.ModCtrl != 0 {
		result |= ModCtrl
	}
	if m&tcell.ModAlt != 0 {
		result |= ModAlt
	}
	if m&tcell.ModMeta != 0 {
		result |= ModMeta
	}
	return result
}

// convertToTcellMod converts our ModMask to tcell.ModMask.
func convertToTcellMod(m ModMask) tcell.ModMask {
	var result tcell.ModMask
	if m&ModShift != 0 {
		result |= tcell.ModShift
	}
	if m&ModCtrl != 0 {
		result |= tcell.ModCtrl
	}
	if m&ModAlt != 0 {
		result |= tcell.ModAlt
	}
	if m&ModMeta != 0 {
		result |= tcell.ModMeta
	}
	return result
}

// convertMouseButton converts tcell button mask to our MouseButton.
func convertMouseButton(b tcell.ButtonMask) MouseButton {
	switch {
	case b&tcell.Button1 != 0:
		return MouseLeft
	case b&tcell.Button3 != 0:
		return MouseMiddle
	case b&tcell.Button2 != 0:
		return MouseRight
	case b&tcell.WheelUp != 0:
		return MouseWheelUp
	case b&tcell.WheelDown != 0:
		return MouseWheelDown
	default:
		return MouseNone
	}
}
