// Package app wires configuration, the canvas, the palette, the outline
// generator and the terminal view into a running inkwell session.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/inkwell/internal/canvas"
	"github.com/dshills/inkwell/internal/config"
	"github.com/dshills/inkwell/internal/config/loader"
	"github.com/dshills/inkwell/internal/event"
	"github.com/dshills/inkwell/internal/outline"
	"github.com/dshills/inkwell/internal/palette"
	"github.com/dshills/inkwell/internal/renderer"
	"github.com/dshills/inkwell/internal/renderer/backend"
)

// DefaultExportPath is where headless outline runs write when no path is
// set.
const DefaultExportPath = "inkwell.png"

// Options configures an Application.
type Options struct {
	// ConfigPath is the config file. Empty uses built-in defaults.
	ConfigPath string

	// Debug forces debug logging.
	Debug bool

	// LogLevel overrides the configured log level when set.
	LogLevel string

	// LogOutput receives logs. Nil uses the configured log file, stderr
	// for headless sessions, or nothing for interactive ones.
	LogOutput io.Writer

	// Overrides is the flag layer of the configuration, keyed by dotted
	// path such as "canvas.width".
	Overrides map[string]any

	// Env replaces the INKWELL_* environment layer.
	Env loader.Loader

	// NoEnv skips the environment layer.
	NoEnv bool

	// Getenv resolves API key variables. Nil uses os.Getenv.
	Getenv func(string) string

	// Outline replaces the configured outline provider.
	Outline outline.Generator

	// Backend is the terminal. Nil runs headless.
	Backend backend.Backend

	// Watch reloads the config file when it changes.
	Watch bool

	// OutPath is where exports are written. Empty gives each export its
	// own artwork-<unix millis>.png in the working directory.
	OutPath string

	// AllowWrite lets scripts call canvas.export.
	AllowWrite bool

	// ScriptOutput receives script print output.
	ScriptOutput io.Writer
}

// Application is one inkwell session.
type Application struct {
	opts      Options
	sessionID string

	logger    *slog.Logger
	bus       event.Bus
	config    *config.Manager
	canvas    *canvas.Canvas
	generator outline.Generator
	metrics   *Metrics

	backend  backend.Backend
	renderer *renderer.Renderer

	// outlineErr explains why no generator is available.
	outlineErr error

	now func() time.Time

	mu         sync.Mutex
	palette    palette.Palette
	paletteCfg config.PaletteConfig
	selected   int
	status     string
	statusErr  bool
	prompting  bool
	prompt     string
	dragging   bool

	busy    atomic.Bool
	running atomic.Bool

	done     chan struct{}
	doneOnce sync.Once
	outlines sync.WaitGroup

	// ctx is cancelled on Shutdown and bounds background work.
	ctx    context.Context
	cancel context.CancelFunc

	subs     []event.Subscription
	cleanups []func() error
}

// New creates and bootstraps an application.
func New(opts Options) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{
		opts:      opts,
		sessionID: uuid.NewString(),
		backend:   opts.Backend,
		metrics:   NewMetrics(),
		now:       time.Now,
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}

	if err := newBootstrapper(app).run(); err != nil {
		cancel()
		return nil, err
	}
	return app, nil
}

// Interactive reports whether the application drives a terminal.
func (app *Application) Interactive() bool {
	return app.backend != nil
}

// SessionID returns the session identifier carried in log records.
func (app *Application) SessionID() string {
	return app.sessionID
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger {
	return app.logger
}

// Bus returns the event bus.
func (app *Application) Bus() event.Bus {
	return app.bus
}

// Canvas returns the canvas.
func (app *Application) Canvas() *canvas.Canvas {
	return app.canvas
}

// Config returns the active configuration.
func (app *Application) Config() *config.Config {
	return app.config.Current()
}

// ConfigManager returns the configuration manager.
func (app *Application) ConfigManager() *config.Manager {
	return app.config
}

// Outline returns the outline generator, nil when none is configured.
func (app *Application) Outline() outline.Generator {
	return app.generator
}

// Metrics returns the session metrics.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}

// Palette returns the active palette and the selected swatch.
func (app *Application) Palette() (palette.Palette, int) {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.palette, app.selected
}

// Status returns the status line message.
func (app *Application) Status() (msg string, isErr bool) {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.status, app.statusErr
}

// IsRunning reports whether Run is active.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Done returns a channel closed by Shutdown.
func (app *Application) Done() <-chan struct{} {
	return app.done
}

// Shutdown stops the event loop. It is safe to call more than once.
func (app *Application) Shutdown() {
	app.doneOnce.Do(func() {
		close(app.done)
		app.cancel()
	})
}

// Close shuts down and releases every resource. Pending outline requests
// are cancelled and waited for. Every release runs; their failures are
// returned together.
func (app *Application) Close() error {
	app.Shutdown()
	app.outlines.Wait()
	return app.runCleanups()
}

// runCleanups releases resources in reverse acquisition order.
func (app *Application) runCleanups() error {
	var errs ErrorList
	for i := len(app.cleanups) - 1; i >= 0; i-- {
		errs.Add(app.cleanups[i]())
	}
	app.cleanups = nil
	return errs.AsError()
}

// exportPath returns OutPath, or a fresh timestamped name when it is unset.
func (app *Application) exportPath() string {
	if app.opts.OutPath != "" {
		return app.opts.OutPath
	}
	return fmt.Sprintf("artwork-%d.png", app.now().UnixMilli())
}

// outlineUnavailable explains why no generator is configured.
func (app *Application) outlineUnavailable() error {
	if app.outlineErr != nil {
		return app.outlineErr
	}
	return outline.ErrNoProvider
}

func (app *Application) setStatus(msg string, isErr bool) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.status = msg
	app.statusErr = isErr
}
