package history

import (
	"context"
	"fmt"
)

// BeginGroup starts a group. Commits made while grouping collapse into a
// single entry created by EndGroup. Nested calls are ignored.
func (h *History) BeginGroup(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.grouping {
		return
	}
	h.grouping = true
	h.groupName = name
	h.groupCommit = false
}

// EndGroup finishes a group, committing once if any commit was requested.
func (h *History) EndGroup() error {
	h.op.Lock()
	defer h.op.Unlock()

	h.mu.Lock()
	if !h.grouping {
		h.mu.Unlock()
		return nil
	}
	name, pending := h.groupName, h.groupCommit
	h.grouping = false
	h.groupCommit = false
	h.mu.Unlock()

	if !pending {
		return nil
	}
	return h.commitLocked(name)
}

// CancelGroup abandons a group and repaints the surface from the entry at
// the cursor, discarding every edit made since BeginGroup, committed or not.
func (h *History) CancelGroup(ctx context.Context) error {
	h.op.Lock()
	defer h.op.Unlock()

	h.mu.Lock()
	if !h.grouping {
		h.mu.Unlock()
		return nil
	}
	h.grouping = false
	h.groupCommit = false
	h.mu.Unlock()

	if err := h.revertLocked(ctx); err != nil {
		return fmt.Errorf("revert group: %w", err)
	}
	return nil
}

// IsGrouping returns true if currently in a group.
func (h *History) IsGrouping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.grouping
}

// Transaction runs fn inside a group. If fn fails the group is cancelled
// and its edits reverted; otherwise the group is committed.
func (h *History) Transaction(ctx context.Context, name string, fn func() error) error {
	h.BeginGroup(name)

	if err := fn(); err != nil {
		if cerr := h.CancelGroup(ctx); cerr != nil {
			return fmt.Errorf("%w (revert: %v)", err, cerr)
		}
		return err
	}

	return h.EndGroup()
}
