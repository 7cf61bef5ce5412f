// Package config loads inkwell's settings.
//
// Settings are layered, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Command line flags      │  ← Highest priority
//	├─────────────────────────────┤
//	│  3. INKWELL_* environment   │
//	├─────────────────────────────┤
//	│  2. Config file (TOML/YAML) │  ← -config path
//	├─────────────────────────────┤
//	│  1. Built-in defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// # Sub-packages
//
//   - loader: file and environment loading into nested maps
//   - watcher: fsnotify-based change detection for live reload
//
// # Basic Usage
//
//	cfg, err := config.Load(config.LoadOptions{Path: "inkwell.toml"})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Canvas.Width)
//
// A Manager keeps the current Config and reloads it when the file changes:
//
//	m, err := config.NewManager(config.LoadOptions{Path: path}, config.WithBus(bus))
//	m.OnReload(func(cfg *config.Config) { /* apply brush and palette */ })
//	m.Watch()
//	defer m.Close()
package config
