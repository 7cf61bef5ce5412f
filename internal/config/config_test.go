package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/inkwell/internal/config/loader"
	"github.com/dshills/inkwell/internal/event"
)

type fakeEnv map[string]any

func (f fakeEnv) Load() (map[string]any, error) {
	out := map[string]any{}
	for k, v := range f {
		loader.SetPath(out, k, v)
	}
	return out, nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load(LoadOptions{NoEnv: true})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Canvas.Width != 800 || cfg.Outline.Timeout != 60*time.Second {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadLayers(t *testing.T) {
	path := writeFile(t, "inkwell.toml", `
[canvas]
width = 1024
height = 768

[brush]
width = 6

[outline]
provider = "anthropic"
timeout = "15s"
`)

	cfg, err := Load(LoadOptions{
		Path: path,
		Env:  fakeEnv{"canvas.height": int64(500), "log.level": "debug"},
		Overrides: map[string]any{
			"canvas.height":  300,
			"script.timeout": 5 * time.Second,
		},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"file width", cfg.Canvas.Width, 1024},
		{"flag beats env and file", cfg.Canvas.Height, 300},
		{"file brush", cfg.Brush.Width, 6.0},
		{"default brush color", cfg.Brush.Color, "#000000"},
		{"file provider", cfg.Outline.Provider, "anthropic"},
		{"file duration", cfg.Outline.Timeout, 15 * time.Second},
		{"env level", cfg.Log.Level, "debug"},
		{"flag duration", cfg.Script.Timeout, 5 * time.Second},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "inkwell.yaml", `
palette:
  scheme: warm
  seed: 7
script:
  timeout: 2s
  allow_write: true
`)

	cfg, err := Load(LoadOptions{Path: path, NoEnv: true})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Palette.Scheme != "warm" || cfg.Palette.Seed != 7 {
		t.Errorf("palette = %+v", cfg.Palette)
	}
	if cfg.Script.Timeout != 2*time.Second || !cfg.Script.AllowWrite {
		t.Errorf("script = %+v", cfg.Script)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "none.toml"), NoEnv: true})
	if err != nil {
		t.Fatalf("Load(missing) error = %v", err)
	}
	if cfg.Canvas.Width != Default().Canvas.Width {
		t.Error("missing file changed defaults")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		is   error
	}{
		{"format", "inkwell.ini", "", loader.ErrUnsupportedFormat},
		{"range", "inkwell.toml", "[canvas]\nwidth = -1\n", ErrValidationFailed},
		{"color", "inkwell.toml", "[brush]\ncolor = \"black\"\n", ErrValidationFailed},
		{"scheme", "inkwell.yaml", "palette:\n  scheme: plaid\n", ErrValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.body)
			if _, err := Load(LoadOptions{Path: path, NoEnv: true}); !errors.Is(err, tt.is) {
				t.Errorf("Load() error = %v, want %v", err, tt.is)
			}
		})
	}

	path := writeFile(t, "bad.toml", "[canvas\n")
	var perr *loader.ParseError
	if _, err := Load(LoadOptions{Path: path, NoEnv: true}); !errors.As(err, &perr) {
		t.Errorf("Load(bad toml) error = %v, want *loader.ParseError", err)
	}
}

func TestValidateCollectsFields(t *testing.T) {
	cfg := Default()
	cfg.Canvas.Width = 0
	cfg.Brush.Width = 0
	cfg.Outline.Provider = "bard"
	cfg.Outline.Size = "big"
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() = %v, want *ValidationError", err)
	}
	want := map[string]bool{
		"canvas.width": true, "brush.width": true, "outline.provider": true,
		"outline.size": true, "log.level": true,
	}
	if len(verr.Fields) != len(want) {
		t.Fatalf("fields = %v", verr.Fields)
	}
	for _, f := range verr.Fields {
		if !want[f.Path] {
			t.Errorf("unexpected field %s", f.Path)
		}
	}
}

func TestResolveAPIKey(t *testing.T) {
	env := map[string]string{"OPENAI_API_KEY": "sk-1", "MY_KEY": "sk-2"}
	getenv := func(k string) string { return env[k] }

	tests := []struct {
		name string
		cfg  OutlineConfig
		want string
	}{
		{"provider default", OutlineConfig{Provider: "openai"}, "sk-1"},
		{"named env", OutlineConfig{Provider: "openai", APIKeyEnv: "MY_KEY"}, "sk-2"},
		{"literal wins", OutlineConfig{Provider: "openai", APIKey: "lit"}, "lit"},
		{"none", OutlineConfig{Provider: "none"}, ""},
	}
	for _, tt := range tests {
		if got := tt.cfg.ResolveAPIKey(getenv); got != tt.want {
			t.Errorf("%s: ResolveAPIKey() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestManagerReload(t *testing.T) {
	path := writeFile(t, "inkwell.toml", "[brush]\nwidth = 3\n")
	bus := event.NewBus()

	var published atomic.Int32
	if _, err := bus.SubscribeFunc(event.TopicConfigReloaded, func(_ context.Context, ev event.Event) error {
		if p, ok := ev.Payload.(event.ConfigReloaded); ok && p.Path == path {
			published.Add(1)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(LoadOptions{Path: path, NoEnv: true}, WithBus(bus))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	var seen float64
	m.OnReload(func(cfg *Config) { seen = cfg.Brush.Width })

	if err := os.WriteFile(path, []byte("[brush]\nwidth = 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if m.Current().Brush.Width != 9 || seen != 9 {
		t.Errorf("width = %v, handler saw %v; want 9", m.Current().Brush.Width, seen)
	}
	if published.Load() != 1 {
		t.Errorf("published = %d, want 1", published.Load())
	}

	// A broken file keeps the previous settings.
	if err := os.WriteFile(path, []byte("[brush]\nwidth = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.Reload(context.Background()); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("Reload(invalid) error = %v", err)
	}
	if m.Current().Brush.Width != 9 {
		t.Errorf("width after failed reload = %v, want 9", m.Current().Brush.Width)
	}
}

func TestManagerWatch(t *testing.T) {
	path := writeFile(t, "inkwell.yaml", "brush:\n  width: 2\n")
	m, err := NewManager(LoadOptions{Path: path, NoEnv: true}, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	reloaded := make(chan float64, 4)
	m.OnReload(func(cfg *Config) { reloaded <- cfg.Brush.Width })
	if err := m.Watch(); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("brush:\n  width: 12\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case w := <-reloaded:
		if w != 12 {
			t.Errorf("reloaded width = %v, want 12", w)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after file change")
	}
}

func TestManagerWatchWithoutFile(t *testing.T) {
	m, err := NewManager(LoadOptions{NoEnv: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Watch(); !errors.Is(err, ErrNoConfigFile) {
		t.Errorf("Watch() error = %v, want ErrNoConfigFile", err)
	}
	m.Close()
}
