package app

import (
	"context"
	"strings"

	"github.com/dshills/inkwell/internal/event"
	"github.com/dshills/inkwell/internal/outline"
	"github.com/dshills/inkwell/internal/palette"
	"github.com/dshills/inkwell/internal/script"
)

// RunScript runs a Lua file against the canvas. Scripts may export only
// when AllowWrite is set.
func (app *Application) RunScript(ctx context.Context, path string) error {
	cfg := app.Config()

	app.mu.Lock()
	pc := app.paletteCfg
	app.mu.Unlock()

	runner, err := script.NewRunner(script.Host{
		Canvas:  app.canvas,
		Outline: app.generator,
		Palette: script.PaletteDefaults{
			Scheme: palette.Scheme(pc.Scheme),
			Base:   pc.Base,
			Size:   pc.Size,
			Seed:   pc.Seed,
		},
		Logger: WithComponent(app.logger, "script"),
		Output: app.opts.ScriptOutput,
	}, script.WithExecutionTimeout(cfg.Script.Timeout))
	if err != nil {
		return NewOperationError("script", path, err)
	}
	defer runner.Close()

	if app.opts.AllowWrite || cfg.Script.AllowWrite {
		runner.Grant(script.CapabilityFileWrite)
	}

	timer := StartTimer()
	if err := runner.RunFile(ctx, path); err != nil {
		return err
	}
	st := app.canvas.State()
	app.logger.Info("script finished", "path", path, "elapsed", timer.Elapsed(), "history", st.Len)
	return nil
}

// GenerateOutline asks the generator for an outline, applies it and writes
// the result to out. An empty out skips the export.
func (app *Application) GenerateOutline(ctx context.Context, prompt, out string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return NewOperationError("outline", "", outline.ErrEmptyPrompt)
	}
	if app.generator == nil {
		return NewOperationError("outline", "", app.outlineUnavailable())
	}

	app.publish(ctx, event.TopicOutlineRequested, event.OutlineRequested{Prompt: prompt})
	img, err := app.generate(ctx, prompt)
	if err == nil {
		err = app.canvas.ApplyExternalImage(img)
	}
	if err != nil {
		app.publish(ctx, event.TopicOutlineFailed, event.OutlineFailed{Prompt: prompt, Err: err})
		return outlineError(prompt, err)
	}

	b := img.Bounds()
	app.publish(ctx, event.TopicOutlineCompleted, event.OutlineCompleted{
		Prompt: prompt,
		Width:  b.Dx(),
		Height: b.Dy(),
	})

	if out == "" {
		return nil
	}
	if err := app.canvas.SaveFile(out); err != nil {
		return NewOperationError("export", out, err)
	}
	app.logger.Info("exported", "path", out)
	return nil
}

// Export writes the canvas to path. An empty path uses OutPath, or a
// timestamped artwork file when OutPath is unset.
func (app *Application) Export(path string) error {
	if path == "" {
		path = app.exportPath()
	}
	if err := app.canvas.SaveFile(path); err != nil {
		return NewOperationError("export", path, err)
	}
	return nil
}
