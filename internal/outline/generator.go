// Package outline asks a remote model for outline artwork.
//
// Every provider reports failures the same way: an error matching
// ErrGenerationFailed. Callers show one message and keep the canvas
// untouched.
package outline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"
)

// Errors for outline generation.
var (
	ErrGenerationFailed = errors.New("outline generation failed")
	ErrNoProvider       = errors.New("no outline provider configured")
	ErrUnknownProvider  = errors.New("unknown outline provider")
	ErrMissingAPIKey    = errors.New("missing api key")
	ErrEmptyPrompt      = errors.New("empty prompt")
)

// Provider names.
const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// DefaultTimeout bounds one generation request.
const DefaultTimeout = 60 * time.Second

// Generator turns a prompt into an outline image.
type Generator interface {
	Generate(ctx context.Context, prompt string) (image.Image, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (image.Image, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (image.Image, error) {
	return f(ctx, prompt)
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string

	// BaseURL overrides the provider endpoint.
	BaseURL string

	Timeout time.Duration

	// Size is the image size requested from image models, e.g. "1024x1024".
	// Text models are asked for a canvas of the same size.
	Size string

	Logger *slog.Logger
}

// GenerationError wraps a provider failure.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrGenerationFailed, e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is matches ErrGenerationFailed.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// New creates the generator named by cfg.Provider.
func New(cfg Config) (Generator, error) {
	cfg = cfg.withDefaults()

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == ProviderNone {
		return nil, ErrNoProvider
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w for %s", ErrMissingAPIKey, provider)
	}

	var g Generator
	switch provider {
	case ProviderOpenAI:
		g = newOpenAI(cfg)
	case ProviderAnthropic:
		g = newAnthropic(cfg)
	case ProviderGemini:
		g = newGemini(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	return &bounded{
		provider: provider,
		inner:    g,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}, nil
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Size == "" {
		c.Size = "1024x1024"
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// canvasSize parses Size into pixel dimensions.
func (c Config) canvasSize() (int, int) {
	var w, h int
	if _, err := fmt.Sscanf(c.Size, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return 1024, 1024
	}
	return w, h
}

// bounded applies the timeout and the common error shape.
type bounded struct {
	provider string
	inner    Generator
	timeout  time.Duration
	logger   *slog.Logger
}

func (b *bounded) Generate(ctx context.Context, prompt string) (image.Image, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	b.logger.Debug("outline request", "provider", b.provider, "prompt", prompt)

	img, err := b.inner.Generate(ctx, prompt)
	if err == nil && img == nil {
		err = errors.New("no image in response")
	}
	if err != nil {
		b.logger.Warn("outline request failed", "provider", b.provider, "error", err)
		var gerr *GenerationError
		if errors.As(err, &gerr) {
			return nil, err
		}
		return nil, &GenerationError{Provider: b.provider, Err: err}
	}

	b.logger.Debug("outline ready",
		"provider", b.provider,
		"bounds", img.Bounds().String(),
		"elapsed", time.Since(start))
	return img, nil
}
