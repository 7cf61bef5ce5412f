package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/inkwell/internal/config/watcher"
	"github.com/dshills/inkwell/internal/event"
)

// ReloadHandler receives the new configuration after a successful reload.
type ReloadHandler func(cfg *Config)

// Manager holds the current configuration and reloads it on file changes.
type Manager struct {
	mu       sync.RWMutex
	opts     LoadOptions
	current  *Config
	handlers []ReloadHandler

	bus      event.Bus
	logger   *slog.Logger
	debounce time.Duration
	watcher  *watcher.Watcher
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithBus publishes config.reloaded on the bus after each reload.
func WithBus(b event.Bus) ManagerOption {
	return func(m *Manager) {
		m.bus = b
	}
}

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDebounce sets the watcher's quiet period.
func WithDebounce(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.debounce = d
	}
}

// NewManager loads the configuration once.
func NewManager(opts LoadOptions, mopts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		opts:     opts,
		logger:   slog.New(slog.DiscardHandler),
		debounce: 100 * time.Millisecond,
	}
	for _, o := range mopts {
		o(m)
	}

	cfg, err := Load(opts)
	if err != nil {
		return nil, err
	}
	m.current = cfg
	return m, nil
}

// Current returns the active configuration. Callers must not modify it.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Path returns the config file path, empty when none was given.
func (m *Manager) Path() string {
	return m.opts.Path
}

// OnReload registers a handler for successful reloads.
func (m *Manager) OnReload(h ReloadHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// Reload reads every source again. On error the current configuration is
// kept.
func (m *Manager) Reload(ctx context.Context) error {
	cfg, err := Load(m.opts)
	if err != nil {
		m.logger.Warn("config reload failed", "path", m.opts.Path, "error", err)
		return err
	}

	m.mu.Lock()
	m.current = cfg
	handlers := append([]ReloadHandler(nil), m.handlers...)
	m.mu.Unlock()

	m.logger.Info("config reloaded", "path", m.opts.Path)
	for _, h := range handlers {
		h(cfg)
	}
	if m.bus != nil {
		if err := m.bus.Publish(ctx, event.TopicConfigReloaded, event.ConfigReloaded{Path: m.opts.Path}); err != nil {
			m.logger.Warn("config reload handlers failed", "error", err)
		}
	}
	return nil
}

// Watch starts reloading whenever the config file changes.
func (m *Manager) Watch() error {
	if m.opts.Path == "" {
		return ErrNoConfigFile
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher != nil {
		return nil
	}

	w, err := watcher.New(
		watcher.WithDebounce(m.debounce),
		watcher.WithErrorHandler(func(err error) {
			m.logger.Warn("config watcher error", "error", err)
		}),
	)
	if err != nil {
		return err
	}
	if err := w.Watch(m.opts.Path); err != nil {
		w.Stop()
		return err
	}
	w.OnChange(func(ev watcher.Event) {
		if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
			m.logger.Debug("config file gone", "path", ev.Path, "op", ev.Op.String())
			return
		}
		_ = m.Reload(context.Background())
	})
	w.Start()
	m.watcher = w
	return nil
}

// Close stops watching.
func (m *Manager) Close() error {
	m.mu.Lock()
	w := m.watcher
	m.watcher = nil
	m.mu.Unlock()

	if w == nil {
		return nil
	}
	if err := w.Stop(); err != nil {
		return fmt.Errorf("stop config watcher: %w", err)
	}
	return nil
}
