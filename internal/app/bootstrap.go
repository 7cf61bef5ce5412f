package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/gg"

	"github.com/dshills/inkwell/internal/canvas"
	"github.com/dshills/inkwell/internal/config"
	"github.com/dshills/inkwell/internal/engine/surface"
	"github.com/dshills/inkwell/internal/event"
	"github.com/dshills/inkwell/internal/outline"
	"github.com/dshills/inkwell/internal/palette"
	"github.com/dshills/inkwell/internal/renderer"
	"github.com/dshills/inkwell/internal/renderer/backend"
)

// bootstrapper runs the initialization steps in order and unwinds the
// completed ones when a later step fails.
type bootstrapper struct {
	app *Application
}

type initStep struct {
	name string
	fn   func() error
}

func newBootstrapper(app *Application) *bootstrapper {
	return &bootstrapper{app: app}
}

func (b *bootstrapper) initOrder() []initStep {
	return []initStep{
		{"config", b.initConfig},
		{"logger", b.initLogger},
		{"bus", b.initBus},
		{"canvas", b.initCanvas},
		{"palette", b.initPalette},
		{"outline", b.initOutline},
		{"subscriptions", b.initSubscriptions},
		{"watcher", b.initWatcher},
		{"renderer", b.initRenderer},
	}
}

func (b *bootstrapper) run() error {
	for _, step := range b.initOrder() {
		if err := step.fn(); err != nil {
			b.cleanup()
			return &InitError{Component: step.name, Err: err}
		}
	}
	return nil
}

// cleanup undoes the completed steps in reverse order.
func (b *bootstrapper) cleanup() {
	if err := b.app.runCleanups(); err != nil && b.app.logger != nil {
		b.app.logger.Warn("cleanup after failed init", "error", err)
	}
}

func (b *bootstrapper) onCleanup(fn func() error) {
	b.app.cleanups = append(b.app.cleanups, fn)
}

func (b *bootstrapper) initConfig() error {
	mgr, err := config.NewManager(config.LoadOptions{
		Path:      b.app.opts.ConfigPath,
		Env:       b.app.opts.Env,
		NoEnv:     b.app.opts.NoEnv,
		Overrides: b.app.opts.Overrides,
	})
	if err != nil {
		return err
	}
	b.app.config = mgr
	b.onCleanup(mgr.Close)
	return nil
}

func (b *bootstrapper) initLogger() error {
	app := b.app
	cfg := app.config.Current()

	level := ParseLogLevel(cfg.Log.Level)
	if app.opts.LogLevel != "" {
		level = ParseLogLevel(app.opts.LogLevel)
	}
	if app.opts.Debug {
		level = LogLevelDebug
	}

	out := app.opts.LogOutput
	if out == nil {
		w, closer, err := openLogOutput(cfg.Log.File, app.Interactive())
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = w
		if closer != nil {
			b.onCleanup(closer.Close)
		}
	}

	app.logger = NewLogger(LoggerConfig{Level: level, Output: out}).With("session", app.sessionID)
	gg.SetLogger(WithComponent(app.logger, "gg"))
	app.logger.Debug("logger ready", "level", level.String(), "interactive", app.Interactive())
	return nil
}

func (b *bootstrapper) initBus() error {
	b.app.bus = event.NewBus()
	return nil
}

func (b *bootstrapper) initCanvas() error {
	app := b.app
	cfg := app.config.Current()

	bg, err := surface.ParseHex(cfg.Canvas.Background)
	if err != nil {
		return err
	}
	brush, err := brushFromConfig(cfg.Brush)
	if err != nil {
		return err
	}

	c, err := canvas.New(canvas.Options{
		Width:      cfg.Canvas.Width,
		Height:     cfg.Canvas.Height,
		Background: bg,
		Brush:      brush,
		MaxHistory: cfg.Canvas.MaxHistory,
		Bus:        app.bus,
		Logger:     WithComponent(app.logger, "canvas"),
	})
	if err != nil {
		return err
	}
	if err := c.Open(); err != nil {
		return fmt.Errorf("open canvas: %w", err)
	}
	app.canvas = c
	return nil
}

func (b *bootstrapper) initPalette() error {
	app := b.app
	pc := app.config.Current().Palette
	p, err := generatePalette(pc)
	if err != nil {
		return err
	}
	app.palette = p
	app.paletteCfg = pc
	app.selected = -1
	return nil
}

func (b *bootstrapper) initOutline() error {
	app := b.app
	if app.opts.Outline != nil {
		app.generator = app.opts.Outline
		return nil
	}

	oc := app.config.Current().Outline
	g, err := outline.New(outline.Config{
		Provider: oc.Provider,
		Model:    oc.Model,
		APIKey:   oc.ResolveAPIKey(app.opts.Getenv),
		BaseURL:  oc.BaseURL,
		Timeout:  oc.Timeout,
		Size:     oc.Size,
		Logger:   WithComponent(app.logger, "outline"),
	})
	switch {
	case err == nil:
		app.generator = g
		app.logger.Info("outline provider ready", "provider", oc.Provider)
	case errors.Is(err, outline.ErrNoProvider):
		app.outlineErr = err
	case errors.Is(err, outline.ErrMissingAPIKey):
		app.outlineErr = fmt.Errorf("%w (set %s)", err, oc.KeyEnv())
		app.logger.Warn("outline disabled", "provider", oc.Provider, "error", err)
	default:
		return err
	}
	return nil
}

func (b *bootstrapper) initSubscriptions() error {
	if err := b.app.subscribe(); err != nil {
		return err
	}
	b.onCleanup(b.app.unsubscribe)

	b.app.config.OnReload(b.app.onConfigReload)
	return nil
}

func (b *bootstrapper) initWatcher() error {
	app := b.app
	if !app.opts.Watch || app.config.Path() == "" {
		return nil
	}
	if err := app.config.Watch(); err != nil {
		app.logger.Warn("config watch unavailable", "path", app.config.Path(), "error", err)
	}
	return nil
}

func (b *bootstrapper) initRenderer() error {
	app := b.app
	if app.backend == nil {
		return nil
	}
	if err := app.backend.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	b.onCleanup(func() error {
		app.backend.Shutdown()
		return nil
	})
	app.backend.EnableMouse()
	app.renderer = renderer.New(app.backend)
	return nil
}

// onConfigReload runs on the watcher goroutine. Interactive sessions hand
// the new settings to the event loop.
func (app *Application) onConfigReload(cfg *config.Config) {
	if app.backend != nil {
		err := app.backend.PostEvent(backend.Event{Type: backend.EventInterrupt, Data: configReloaded{cfg: cfg}})
		if err != nil {
			app.logger.Warn("config reload dropped", "error", err)
		}
		return
	}
	app.applyConfig(context.Background(), cfg)
}

// applyConfig applies the live settings: brush and palette.
func (app *Application) applyConfig(ctx context.Context, cfg *config.Config) {
	brush, err := brushFromConfig(cfg.Brush)
	if err != nil {
		app.logger.Warn("reloaded brush ignored", "error", err)
	} else {
		app.canvas.SetBrush(brush)
	}

	p, err := generatePalette(cfg.Palette)
	if err != nil {
		app.logger.Warn("reloaded palette ignored", "error", err)
		return
	}
	app.mu.Lock()
	app.palette = p
	app.paletteCfg = cfg.Palette
	app.selected = -1
	app.mu.Unlock()

	app.publish(ctx, event.TopicPaletteChanged, event.PaletteChanged{
		Scheme: string(p.Scheme),
		Colors: p.Colors,
	})
}

func brushFromConfig(bc config.BrushConfig) (surface.Brush, error) {
	col, err := surface.ParseHex(bc.Color)
	if err != nil {
		return surface.Brush{}, err
	}
	return surface.Brush{Color: col}.WithWidth(bc.Width), nil
}

func generatePalette(pc config.PaletteConfig) (palette.Palette, error) {
	scheme, err := palette.ParseScheme(pc.Scheme)
	if err != nil {
		return palette.Palette{}, err
	}
	return palette.Generate(scheme, pc.Base, pc.Size, pc.Seed)
}
