package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Common errors for history operations.
var (
	ErrNotInitialized = errors.New("history not initialized")
	ErrGroupActive    = errors.New("history group in progress")
)

// Initial label of the first log entry.
const labelInitial = "initial"

// entry wraps a snapshot with its edit label.
type entry struct {
	snap  Snapshot
	label string
}

// History manages the snapshot log for one surface.
type History struct {
	// op serializes whole operations, including surface restores.
	op sync.Mutex

	// mu guards the fields below for concurrent readers.
	mu sync.Mutex

	surface  Surface
	listener Listener

	log    []entry
	cursor int

	// Grouping state
	grouping    bool
	groupName   string
	groupCommit bool

	// Configuration
	maxEntries int
}

// Option configures a History.
type Option func(*History)

// WithListener sets the change listener.
func WithListener(l Listener) Option {
	return func(h *History) {
		h.listener = l
	}
}

// WithMaxEntries caps the log length. Zero means unlimited.
func WithMaxEntries(n int) Option {
	return func(h *History) {
		if n >= 0 {
			h.maxEntries = n
		}
	}
}

// New creates a history for the given surface.
func New(surface Surface, opts ...Option) *History {
	h := &History{surface: surface}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetListener replaces the change listener.
// The listener runs while the operation lock is held and must not call
// back into Initialize, Commit, Undo or Redo.
func (h *History) SetListener(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listener = l
}

// Initialize captures the current surface as the first log entry.
// Any previous log is discarded.
func (h *History) Initialize() error {
	h.op.Lock()
	defer h.op.Unlock()

	snap, err := h.surface.Capture()
	if err != nil {
		return fmt.Errorf("capture initial surface: %w", err)
	}

	h.mu.Lock()
	h.log = []entry{{snap: snap, label: labelInitial}}
	h.cursor = 0
	h.grouping = false
	h.groupCommit = false
	h.mu.Unlock()

	h.notify()
	return nil
}

// Commit records the current surface as a new entry after discarding every
// entry beyond the cursor. Inside a group the capture is deferred to
// EndGroup.
func (h *History) Commit(label string) error {
	h.op.Lock()
	defer h.op.Unlock()

	h.mu.Lock()
	if h.log == nil {
		h.mu.Unlock()
		return ErrNotInitialized
	}
	if h.grouping {
		h.groupCommit = true
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	return h.commitLocked(label)
}

// commitLocked captures and appends. The caller holds h.op.
func (h *History) commitLocked(label string) error {
	snap, err := h.surface.Capture()
	if err != nil {
		return fmt.Errorf("capture surface: %w", err)
	}

	h.mu.Lock()
	h.log = append(h.log[:h.cursor+1:h.cursor+1], entry{snap: snap, label: label})
	if h.maxEntries > 0 && len(h.log) > h.maxEntries {
		excess := len(h.log) - h.maxEntries
		h.log = append([]entry(nil), h.log[excess:]...)
	}
	h.cursor = len(h.log) - 1
	h.mu.Unlock()

	h.notify()
	return nil
}

// Undo restores the previous entry. It reports false without touching the
// surface or notifying when there is nothing to undo.
func (h *History) Undo(ctx context.Context) (bool, error) {
	return h.step(ctx, -1)
}

// Redo restores the next entry. It reports false without touching the
// surface or notifying when there is nothing to redo.
func (h *History) Redo(ctx context.Context) (bool, error) {
	return h.step(ctx, 1)
}

// step moves the cursor by delta, painting the target entry first.
func (h *History) step(ctx context.Context, delta int) (bool, error) {
	h.op.Lock()
	defer h.op.Unlock()

	h.mu.Lock()
	if h.log == nil {
		h.mu.Unlock()
		return false, ErrNotInitialized
	}
	if h.grouping {
		h.mu.Unlock()
		return false, ErrGroupActive
	}
	target := h.cursor + delta
	if target < 0 || target >= len(h.log) {
		h.mu.Unlock()
		return false, nil
	}
	snap := h.log[target].snap
	h.mu.Unlock()

	// The op lock stays held across the decode.
	if err := h.surface.Restore(ctx, snap); err != nil {
		return false, fmt.Errorf("restore snapshot %s: %w", snap.ID(), err)
	}

	h.mu.Lock()
	h.cursor = target
	h.mu.Unlock()

	h.notify()
	return true, nil
}

// Revert repaints the displayed entry over the surface, discarding edits
// that were never committed. The cursor and log are unchanged and no
// notification is sent.
func (h *History) Revert(ctx context.Context) error {
	h.op.Lock()
	defer h.op.Unlock()
	return h.revertLocked(ctx)
}

// revertLocked restores log[cursor]. The caller holds h.op.
func (h *History) revertLocked(ctx context.Context) error {
	h.mu.Lock()
	if h.log == nil {
		h.mu.Unlock()
		return ErrNotInitialized
	}
	snap := h.log[h.cursor].snap
	h.mu.Unlock()

	if err := h.surface.Restore(ctx, snap); err != nil {
		return fmt.Errorf("revert to snapshot %s: %w", snap.ID(), err)
	}
	return nil
}

// notify sends the current state to the listener.
func (h *History) notify() {
	h.mu.Lock()
	l := h.listener
	st := h.stateLocked()
	h.mu.Unlock()

	if l != nil {
		l(st)
	}
}

// stateLocked computes the predicates. The caller holds h.mu.
func (h *History) stateLocked() State {
	return State{
		CanUndo: h.cursor > 0,
		CanRedo: h.cursor < len(h.log)-1,
		Len:     len(h.log),
		Cursor:  h.cursor,
	}
}

// State returns the current history state.
func (h *History) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stateLocked()
}

// CanUndo returns true if undo is available.
func (h *History) CanUndo() bool {
	return h.State().CanUndo
}

// CanRedo returns true if redo is available.
func (h *History) CanRedo() bool {
	return h.State().CanRedo
}

// Len returns the number of entries in the log.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.log)
}

// Cursor returns the index of the displayed entry.
func (h *History) Cursor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

// Current returns the displayed snapshot.
func (h *History) Current() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.log == nil {
		return Snapshot{}, false
	}
	return h.log[h.cursor].snap, true
}

// Entries returns metadata for every entry in log order.
func (h *History) Entries() []EntryInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]EntryInfo, len(h.log))
	for i, e := range h.log {
		result[i] = EntryInfo{
			ID:      e.snap.ID(),
			Label:   e.label,
			Time:    e.snap.Time(),
			Size:    e.snap.Size(),
			Current: i == h.cursor,
		}
	}
	return result
}
