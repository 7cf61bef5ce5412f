// Package backend provides terminal backend abstraction for the renderer.
package backend

import (
	"errors"
	"sync"

	"github.com/dshills/inkwell/internal/renderer/core"
)

// ErrEventQueueFull is returned by PostEvent when the event was dropped.
var ErrEventQueueFull = errors.New("event queue full")

// EventType identifies the type of terminal event.
type EventType int

const (
	EventNone EventType = iota
	EventKey
	EventMouse
	EventResize
	EventInterrupt
)

// Event represents a terminal event.
type Event struct {
	Type EventType

	// Key event fields
	Key  Key
	Rune rune
	Mod  ModMask

	// Mouse event fields
	MouseX, MouseY int
	MouseButton    MouseButton

	// Resize event fields
	Width, Height int

	// Data carries the payload of an interrupt event.
	Data any
}

// Key represents a keyboard key.
type Key int

// Key constants for special keys.
const (
	KeyNone Key = iota
	KeyRune     // Regular character (use Rune field)
	KeyEscape
	KeyEnter
	KeyTab
	KeyBackspace
	KeyDelete
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyCtrlC
	KeyCtrlS
	KeyCtrlY
	KeyCtrlZ
)

// ModMask represents modifier key state.
type ModMask int

const (
	ModNone  ModMask = 0
	ModShift ModMask = 1 << iota
	ModCtrl
	ModAlt
	ModMeta
)

// Has returns true if the mask contains the given modifier.
func (m ModMask) Has(mod ModMask) bool {
	return m&mod != 0
}

// MouseButton represents mouse button state.
type MouseButton int

const (
	MouseNone MouseButton = iota
	MouseLeft
	MouseMiddle
	MouseRight
	MouseWheelUp
	MouseWheelDown
)

// Backend defines the interface for terminal/display backends.
type Backend interface {
	// Init initializes the backend for use.
	// Must be called before any other methods.
	Init() error

	// Shutdown releases backend resources and restores terminal state.
	Shutdown()

	// Size returns the current terminal dimensions.
	Size() (width, height int)

	// SetCell sets a single cell at the given position.
	// Positions outside the terminal are silently ignored.
	SetCell(x, y int, cell core.Cell)

	// GetCell returns the cell at the given position.
	// Returns an empty cell for positions outside the terminal.
	GetCell(x, y int) core.Cell

	// Fill fills a rectangular region with the given cell.
	Fill(rect core.ScreenRect, cell core.Cell)

	// Clear clears the entire screen with the default style.
	Clear()

	// Show synchronizes the internal buffer with the actual display.
	Show()

	// PollEvent waits for and returns the next terminal event.
	// It returns an EventNone event after Shutdown.
	PollEvent() Event

	// PostEvent posts a synthetic event to the event queue. It returns
	// ErrEventQueueFull when the event was dropped.
	PostEvent(event Event) error

	// HasTrueColor returns true if the backend supports 24-bit color.
	HasTrueColor() bool

	// Beep produces an audible or visual bell.
	Beep()

	// EnableMouse enables mouse event reporting.
	EnableMouse()

	// DisableMouse disables mouse event reporting.
	DisableMouse()
}

// NullBackend is an in-memory backend for tests and headless runs.
type NullBackend struct {
	mu            sync.Mutex
	width, height int
	cells         [][]core.Cell
	shows         int
	beeps         int
	events        chan Event
	done          chan struct{}
	closeOnce     sync.Once
}

// NewNullBackend creates a null backend with the given dimensions.
func NewNullBackend(width, height int) *NullBackend {
	return &NullBackend{
		width:  width,
		height: height,
		events: make(chan Event, 100),
		done:   make(chan struct{}),
	}
}

func (b *NullBackend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cells = newGrid(b.width, b.height)
	return nil
}

func (b *NullBackend) Shutdown() {
	b.closeOnce.Do(func() { close(b.done) })
}

func (b *NullBackend) Size() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

func (b *NullBackend) SetCell(x, y int, cell core.Cell) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if x >= 0 && x < b.width && y >= 0 && y < b.height {
		b.cells[y][x] = cell
	}
}

func (b *NullBackend) GetCell(x, y int) core.Cell {
	b.mu.Lock()
	defer b.mu.Unlock()
	if x >= 0 && x < b.width && y >= 0 && y < b.height {
		return b.cells[y][x]
	}
	return core.EmptyCell()
}

func (b *NullBackend) Fill(rect core.ScreenRect, cell core.Cell) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for y := max(rect.Top, 0); y < rect.Bottom && y < b.height; y++ {
		for x := max(rect.Left, 0); x < rect.Right && x < b.width; x++ {
			b.cells[y][x] = cell
		}
	}
}

func (b *NullBackend) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cells = newGrid(b.width, b.height)
}

func (b *NullBackend) Show() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shows++
}

func (b *NullBackend) PollEvent() Event {
	select {
	case ev := <-b.events:
		return ev
	case <-b.done:
		return Event{Type: EventNone}
	}
}

func (b *NullBackend) PostEvent(event Event) error {
	select {
	case b.events <- event:
		return nil
	default:
		return ErrEventQueueFull
	}
}

func (b *NullBackend) HasTrueColor() bool { return true }
func (b *NullBackend) EnableMouse()       {}
func (b *NullBackend) DisableMouse()      {}

func (b *NullBackend) Beep() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.beeps++
}

// Shows returns how many times Show was called.
func (b *NullBackend) Shows() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shows
}

// Beeps returns how many times Beep was called.
func (b *NullBackend) Beeps() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.beeps
}

// Row returns the runes of one row as a string, for assertions.
func (b *NullBackend) Row(y int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if y < 0 || y >= b.height {
		return ""
	}
	runes := make([]rune, 0, b.width)
	for _, c := range b.cells[y] {
		if c.Width == 0 && c.Rune == 0 {
			continue
		}
		runes = append(runes, c.Rune)
	}
	return string(runes)
}

// Resize simulates a terminal resize and queues a resize event.
func (b *NullBackend) Resize(width, height int) {
	b.mu.Lock()
	b.width = width
	b.height = height
	b.cells = newGrid(width, height)
	b.mu.Unlock()

	_ = b.PostEvent(Event{Type: EventResize, Width: width, Height: height})
}

func newGrid(width, height int) [][]core.Cell {
	cells := make([][]core.Cell, height)
	for i := range cells {
		cells[i] = make([]core.Cell, width)
		for j := range cells[i] {
			cells[i][j] = core.EmptyCell()
		}
	}
	return cells
}
