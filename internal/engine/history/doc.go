// Package history provides undo/redo functionality for the drawing canvas.
//
// History keeps a linear log of full-surface snapshots and a cursor into
// that log. The snapshot at the cursor is always the one shown on the
// surface. Key concepts:
//
// # Snapshots
//
// A Snapshot is an immutable encoded image of the whole surface. Snapshots
// are never diffed; they are identified only by their position in the log.
//
// # The Log
//
// The log is a single slice plus an index:
//
//	h := history.New(surface)
//	h.Initialize()          // log = [S0], cursor = 0
//
//	// after each finished edit
//	h.Commit("stroke")      // drop everything after the cursor, append
//
//	// undo/redo move the cursor and repaint the surface
//	h.Undo(ctx)
//	h.Redo(ctx)
//
// A commit after an undo discards the redo future.
//
// # Notifications
//
// A Listener receives the freshly computed State after every operation that
// changed it. CanUndo is always cursor > 0 and CanRedo is always
// cursor < len(log)-1. Guarded no-ops (undo at the start, redo at the end)
// do not notify.
//
// # Grouping
//
// Several edits can be collapsed into one log entry:
//
//	h.BeginGroup("outline import")
//	// ... edits that each call Commit ...
//	h.EndGroup()
//
// # Serialization
//
// Every operation runs to completion before the next starts. Restoring a
// snapshot during undo/redo holds the operation lock for the whole decode,
// so no other operation can observe a half-moved cursor.
package history
