package canvas

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Triggers holds the four request counters the UI increments. Counters
// only ever grow; an Observer turns each increment into one operation.
type Triggers struct {
	stroke atomic.Uint64
	clear  atomic.Uint64
	undo   atomic.Uint64
	redo   atomic.Uint64
}

// Counts is a point-in-time reading of the trigger counters.
type Counts struct {
	Stroke uint64
	Clear  uint64
	Undo   uint64
	Redo   uint64
}

// CompleteStroke records a finished stroke.
func (t *Triggers) CompleteStroke() { t.stroke.Add(1) }

// RequestClear records a clear request.
func (t *Triggers) RequestClear() { t.clear.Add(1) }

// RequestUndo records an undo request.
func (t *Triggers) RequestUndo() { t.undo.Add(1) }

// RequestRedo records a redo request.
func (t *Triggers) RequestRedo() { t.redo.Add(1) }

// Counts reads all counters.
func (t *Triggers) Counts() Counts {
	return Counts{
		Stroke: t.stroke.Load(),
		Clear:  t.clear.Load(),
		Undo:   t.undo.Load(),
		Redo:   t.redo.Load(),
	}
}

// Actions are the operations an Observer fires.
type Actions interface {
	CommitStroke(ctx context.Context) error
	Clear(ctx context.Context) error
	Undo(ctx context.Context) (bool, error)
	Redo(ctx context.Context) (bool, error)
}

// Observer compares counters with the last values it saw.
type Observer struct {
	mu      sync.Mutex
	actions Actions
	seen    Counts
}

// NewObserver creates an observer that has seen start.
func NewObserver(actions Actions, start Counts) *Observer {
	return &Observer{actions: actions, seen: start}
}

// Observe fires one action per increment since the last call, strokes
// first, then clears, undos and redos. Each increment is consumed before
// its action runs, so a failing action is not retried. The first error
// stops processing; remaining increments fire on the next call.
func (o *Observer) Observe(ctx context.Context, now Counts) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for o.seen.Stroke < now.Stroke {
		o.seen.Stroke++
		if err := o.actions.CommitStroke(ctx); err != nil {
			return fmt.Errorf("stroke trigger: %w", err)
		}
	}
	for o.seen.Clear < now.Clear {
		o.seen.Clear++
		if err := o.actions.Clear(ctx); err != nil {
			return fmt.Errorf("clear trigger: %w", err)
		}
	}
	for o.seen.Undo < now.Undo {
		o.seen.Undo++
		if _, err := o.actions.Undo(ctx); err != nil {
			return fmt.Errorf("undo trigger: %w", err)
		}
	}
	for o.seen.Redo < now.Redo {
		o.seen.Redo++
		if _, err := o.actions.Redo(ctx); err != nil {
			return fmt.Errorf("redo trigger: %w", err)
		}
	}
	return nil
}

// Seen returns the last observed counts.
func (o *Observer) Seen() Counts {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.seen
}
