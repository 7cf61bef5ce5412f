package app

import (
	"context"
	"fmt"

	"github.com/dshills/inkwell/internal/event"
)

// subscribe registers the application's bus handlers.
func (app *Application) subscribe() error {
	logger := WithComponent(app.logger, "events")

	handlers := []struct {
		pattern event.Topic
		fn      event.HandlerFunc
	}{
		{event.TopicHistoryChanged, func(_ context.Context, ev event.Event) error {
			app.metrics.RecordHistoryChange()
			if st, ok := ev.Payload.(event.HistoryChanged); ok {
				logger.Debug("history changed", "len", st.Len, "cursor", st.Cursor,
					"can_undo", st.CanUndo, "can_redo", st.CanRedo)
			}
			return nil
		}},
		{event.TopicCanvasCommitted, func(_ context.Context, ev event.Event) error {
			if c, ok := ev.Payload.(event.CanvasCommitted); ok {
				logger.Debug("canvas committed", "label", c.Label, "len", c.Len)
			}
			return nil
		}},
		{"outline.*", func(_ context.Context, ev event.Event) error {
			switch p := ev.Payload.(type) {
			case event.OutlineRequested:
				logger.Info("outline requested", "prompt", p.Prompt)
			case event.OutlineCompleted:
				logger.Info("outline applied", "prompt", p.Prompt, "width", p.Width, "height", p.Height)
			case event.OutlineFailed:
				logger.Warn("outline failed", "prompt", p.Prompt, "error", p.Err)
			}
			return nil
		}},
		{event.TopicPaletteChanged, func(_ context.Context, ev event.Event) error {
			if p, ok := ev.Payload.(event.PaletteChanged); ok {
				logger.Debug("palette changed", "scheme", p.Scheme, "colors", len(p.Colors))
			}
			return nil
		}},
		{event.TopicConfigReloaded, func(_ context.Context, ev event.Event) error {
			if p, ok := ev.Payload.(event.ConfigReloaded); ok {
				logger.Info("config reloaded", "path", p.Path)
			}
			return nil
		}},
	}

	for _, h := range handlers {
		sub, err := app.bus.SubscribeFunc(h.pattern, h.fn)
		if err != nil {
			_ = app.unsubscribe()
			return fmt.Errorf("subscribe %s: %w", h.pattern, err)
		}
		app.subs = append(app.subs, sub)
	}
	return nil
}

func (app *Application) unsubscribe() error {
	var errs ErrorList
	for _, sub := range app.subs {
		errs.Add(app.bus.Unsubscribe(sub))
	}
	app.subs = nil
	return errs.AsError()
}

// publish sends an event and logs handler failures.
func (app *Application) publish(ctx context.Context, topic event.Topic, payload any) {
	if err := app.bus.Publish(ctx, topic, payload); err != nil {
		app.logger.Warn("event handler failed", "topic", string(topic), "error", err)
	}
}
