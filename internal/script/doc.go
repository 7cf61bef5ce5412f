// Package script runs Lua automation scripts against a canvas.
//
// Scripts run in a sandboxed gopher-lua state: only the base, table,
// string and math libraries are opened, and dofile, loadfile, load and
// loadstring are removed. Execution is bounded by a context deadline.
//
// # State
//
//	state := script.NewState(script.WithExecutionTimeout(10 * time.Second))
//	defer state.Close()
//
//	if err := state.DoString(ctx, `x = 1 + 1`); err != nil {
//	    log.Fatal(err)
//	}
//
// # Host API
//
// A Host installs three modules into the state:
//
//	canvas.stroke({{10,10},{50,40}}, {color="#ff0000", width=6})
//	canvas.clear()
//	canvas.undo()           -- true when something was undone
//	canvas.redo()           -- true when something was redone
//	canvas.can_undo()
//	canvas.can_redo()
//	canvas.history()        -- length, cursor (0-based), {labels...}
//	canvas.brush("#112233", 3)
//	canvas.tool("eraser")   -- "brush" or "eraser"
//	canvas.batch(function() ... end)  -- one history entry, reverted on error
//	canvas.size()           -- width, height
//	canvas.export("out.png") -- needs the filesystem.write capability
//
//	palette.generate("triadic", "#3366cc", 5)  -- {"#..", ...}
//	palette.schemes()
//
//	outline.generate("a cat")  -- true, or false and an error message
//
// print is routed to the host logger and output writer.
package script
