package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/inkwell/internal/config/loader"
	"github.com/dshills/inkwell/internal/engine/surface"
	"github.com/dshills/inkwell/internal/palette"
)

// Config holds every inkwell setting.
type Config struct {
	Canvas  CanvasConfig  `yaml:"canvas"`
	Brush   BrushConfig   `yaml:"brush"`
	Palette PaletteConfig `yaml:"palette"`
	Outline OutlineConfig `yaml:"outline"`
	Log     LogConfig     `yaml:"log"`
	Script  ScriptConfig  `yaml:"script"`
}

// CanvasConfig sizes the drawing surface.
type CanvasConfig struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Background string `yaml:"background"`

	// MaxHistory caps undo entries. Zero keeps every entry.
	MaxHistory int `yaml:"max_history"`
}

// BrushConfig is the initial brush.
type BrushConfig struct {
	Color string  `yaml:"color"`
	Width float64 `yaml:"width"`
}

// PaletteConfig picks the initial palette.
type PaletteConfig struct {
	Scheme string `yaml:"scheme"`
	Base   string `yaml:"base"`
	Size   int    `yaml:"size"`
	Seed   int64  `yaml:"seed"`
}

// OutlineConfig selects the outline provider.
type OutlineConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`

	// APIKey is normally left empty; the key is read from APIKeyEnv.
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`

	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Size    string        `yaml:"size"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
	// File receives interactive-mode logs. Empty discards them.
	File string `yaml:"file"`
}

// ScriptConfig bounds Lua scripts.
type ScriptConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	AllowWrite bool          `yaml:"allow_write"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Canvas: CanvasConfig{
			Width:      800,
			Height:     600,
			Background: "#ffffff",
			MaxHistory: 200,
		},
		Brush: BrushConfig{
			Color: "#000000",
			Width: 4,
		},
		Palette: PaletteConfig{
			Scheme: "complementary",
			Base:   "#3366cc",
			Size:   5,
		},
		Outline: OutlineConfig{
			Provider: "none",
			Timeout:  60 * time.Second,
			Size:     "1024x1024",
		},
		Log: LogConfig{
			Level: "info",
		},
		Script: ScriptConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// defaultKeyEnv names the usual API key variable per provider.
var defaultKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// KeyEnv returns the variable the API key is read from.
func (o OutlineConfig) KeyEnv() string {
	if o.APIKeyEnv != "" {
		return o.APIKeyEnv
	}
	return defaultKeyEnv[strings.ToLower(o.Provider)]
}

// ResolveAPIKey returns APIKey, or the value of KeyEnv looked up with
// getenv (os.Getenv when nil).
func (o OutlineConfig) ResolveAPIKey(getenv func(string) string) string {
	if o.APIKey != "" {
		return o.APIKey
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if env := o.KeyEnv(); env != "" {
		return getenv(env)
	}
	return ""
}

// LoadOptions selects the sources Load merges.
type LoadOptions struct {
	// Path is the config file. Empty skips the file layer; a missing
	// file is not an error.
	Path string

	// FS reads the file. Nil uses the OS.
	FS loader.FileSystem

	// Env loads the environment layer. Nil uses INKWELL_* variables;
	// NoEnv skips the layer.
	Env   loader.Loader
	NoEnv bool

	// Overrides is the flag layer, keyed by dotted path.
	Overrides map[string]any
}

// Load merges defaults, file, environment and overrides, then validates.
func Load(opts LoadOptions) (*Config, error) {
	merged := map[string]any{}

	if opts.Path != "" {
		l, err := loader.ForPath(opts.FS, opts.Path)
		if err != nil {
			return nil, err
		}
		file, err := l.Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, file)
	}

	if !opts.NoEnv {
		env := opts.Env
		if env == nil {
			env = loader.NewEnvLoader(loader.DefaultEnvPrefix)
		}
		m, err := env.Load()
		if err != nil {
			return nil, fmt.Errorf("environment: %w", err)
		}
		merged = loader.DeepMerge(merged, m)
	}

	flags := map[string]any{}
	for path, v := range opts.Overrides {
		loader.SetPath(flags, path, v)
	}
	merged = loader.DeepMerge(merged, flags)

	cfg, err := decode(merged)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode applies a merged map on top of the defaults. The map goes through
// YAML so durations and numbers convert the same way for every source.
func decode(m map[string]any) (*Config, error) {
	cfg := Default()
	if len(m) == 0 {
		return cfg, nil
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and colors.
func (c *Config) Validate() error {
	var fields []FieldError
	bad := func(path, msg string, v any) {
		fields = append(fields, FieldError{Path: path, Message: msg, Value: v})
	}

	if c.Canvas.Width <= 0 || c.Canvas.Width > 8192 {
		bad("canvas.width", "must be between 1 and 8192", c.Canvas.Width)
	}
	if c.Canvas.Height <= 0 || c.Canvas.Height > 8192 {
		bad("canvas.height", "must be between 1 and 8192", c.Canvas.Height)
	}
	if !isHex(c.Canvas.Background) {
		bad("canvas.background", "must be a #rgb or #rrggbb color", c.Canvas.Background)
	}
	if c.Canvas.MaxHistory < 0 {
		bad("canvas.max_history", "must not be negative", c.Canvas.MaxHistory)
	}
	if !isHex(c.Brush.Color) {
		bad("brush.color", "must be a #rgb or #rrggbb color", c.Brush.Color)
	}
	if c.Brush.Width < 1 || c.Brush.Width > 256 {
		bad("brush.width", "must be between 1 and 256", c.Brush.Width)
	}
	if !isHex(c.Palette.Base) {
		bad("palette.base", "must be a #rgb or #rrggbb color", c.Palette.Base)
	}
	if c.Palette.Size < 1 || c.Palette.Size > palette.MaxSize {
		bad("palette.size", fmt.Sprintf("must be between 1 and %d", palette.MaxSize), c.Palette.Size)
	}
	if _, err := palette.ParseScheme(c.Palette.Scheme); err != nil {
		bad("palette.scheme", "unknown scheme", c.Palette.Scheme)
	}
	switch strings.ToLower(c.Outline.Provider) {
	case "", "none", "openai", "anthropic", "gemini":
	default:
		bad("outline.provider", "must be none, openai, anthropic or gemini", c.Outline.Provider)
	}
	if c.Outline.Timeout < 0 {
		bad("outline.timeout", "must not be negative", c.Outline.Timeout)
	}
	var w, h int
	if _, err := fmt.Sscanf(c.Outline.Size, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		bad("outline.size", "must look like 1024x1024", c.Outline.Size)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		bad("log.level", "must be debug, info, warn or error", c.Log.Level)
	}
	if c.Script.Timeout < 0 {
		bad("script.timeout", "must not be negative", c.Script.Timeout)
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func isHex(s string) bool {
	_, err := surface.ParseHex(s)
	return err == nil
}
