package app

import (
	"errors"
	"image/color"

	"github.com/dshills/inkwell/internal/renderer"
	"github.com/dshills/inkwell/internal/renderer/backend"
)

// inputQueueSize bounds the events waiting for the loop.
const inputQueueSize = 256

// Run drives the interactive session until quit or Shutdown. Every event
// is handled on this goroutine; background work reports back through
// interrupt events.
func (app *Application) Run() error {
	if app.backend == nil {
		return ErrNoBackend
	}
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	app.logger.Info("session started")
	events := app.startInputPolling()
	app.draw()

	for {
		select {
		case <-app.done:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := app.dispatch(ev); err != nil {
				if errors.Is(err, ErrQuit) {
					app.logger.Info("session ended")
					app.Shutdown()
					return nil
				}
				app.reportError(err)
			}
			app.draw()
		}
	}
}

// dispatch handles one event and records how long it took.
func (app *Application) dispatch(ev backend.Event) error {
	timer := StartTimer()
	defer func() { app.metrics.RecordInput(timer.Elapsed()) }()
	return app.handleEvent(ev)
}

// startInputPolling reads backend events on a goroutine. The channel is
// closed when the backend shuts down or the application is done.
func (app *Application) startInputPolling() <-chan backend.Event {
	events := make(chan backend.Event, inputQueueSize)

	go func() {
		defer close(events)
		for {
			ev := app.backend.PollEvent()
			if ev.Type == backend.EventNone {
				return
			}

			// Drag samples may be dropped under load; everything else waits.
			if ev.Type == backend.EventMouse && ev.MouseButton == backend.MouseLeft {
				select {
				case events <- ev:
				case <-app.done:
					return
				default:
					app.metrics.RecordInputDropped()
				}
				continue
			}

			select {
			case events <- ev:
			case <-app.done:
				return
			}
		}
	}()

	return events
}

// draw renders one frame.
func (app *Application) draw() {
	if app.renderer == nil {
		return
	}
	timer := StartTimer()
	app.renderer.Draw(app.canvas.Surface().Image(), app.view())
	app.metrics.RecordFrame(timer.Elapsed())
}

// view collects the state shown around the preview.
func (app *Application) view() renderer.View {
	st := app.canvas.State()

	app.mu.Lock()
	defer app.mu.Unlock()

	swatches := make([]color.RGBA, 0, app.palette.Len())
	for i := 0; i < app.palette.Len(); i++ {
		swatches = append(swatches, app.palette.RGBA(i))
	}

	return renderer.View{
		Palette:     swatches,
		Selected:    app.selected,
		Scheme:      app.palette.Scheme.DisplayName(),
		Tool:        app.canvas.Tool().String(),
		BrushWidth:  app.canvas.Brush().Width,
		CanUndo:     st.CanUndo,
		CanRedo:     st.CanRedo,
		HistoryLen:  st.Len,
		Cursor:      st.Cursor,
		Status:      app.status,
		StatusError: app.statusErr,
		Prompting:   app.prompting,
		Prompt:      app.prompt,
		Busy:        app.busy.Load(),
	}
}

// reportError shows err on the status line.
func (app *Application) reportError(err error) {
	app.logger.Warn("operation failed", "error", err)
	app.setStatus(err.Error(), true)
	app.backend.Beep()
}
