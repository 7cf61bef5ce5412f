// Package main is the entry point for inkwell.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/dshills/inkwell/internal/app"
	"github.com/dshills/inkwell/internal/renderer/backend"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// cliFlags holds the flags that pick a mode rather than configure the app.
type cliFlags struct {
	script  string
	prompt  string
	out     string
	width   int
	height  int
	noWatch bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, cli := parseFlags()

	if cli.script != "" || cli.prompt != "" {
		return runHeadless(opts, cli)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: stdout is not a terminal; use -script or -prompt for headless runs")
		return 1
	}
	return runInteractive(opts, cli)
}

func runInteractive(opts app.Options, cli cliFlags) int {
	screen, err := backend.NewTerminal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create terminal: %v\n", err)
		return 1
	}
	opts.Backend = screen
	opts.Watch = !cli.noWatch

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	// Ensure cleanup on all exit paths
	defer closeApp(application)

	// Handle signals for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		select {
		case <-signals:
			application.Shutdown()
		case <-application.Done():
		}
	}()

	if err := application.Run(); err != nil && !errors.Is(err, app.ErrQuit) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runHeadless(opts app.Options, cli cliFlags) int {
	opts.ScriptOutput = os.Stdout
	if cli.out != "" {
		opts.OutPath = cli.out
		opts.AllowWrite = true
	}

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer closeApp(application)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cli.script != "" {
		if err := application.RunScript(ctx, cli.script); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if cli.out != "" {
			if err := application.Export(cli.out); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return 1
			}
		}
		return 0
	}

	out := cli.out
	if out == "" {
		out = app.DefaultExportPath
	}
	if err := application.GenerateOutline(ctx, cli.prompt, out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(out)
	return 0
}

func closeApp(application *app.Application) {
	if err := application.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: shutdown: %v\n", err)
	}
}

func parseFlags() (app.Options, cliFlags) {
	var opts app.Options
	var cli cliFlags
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (.toml or .yaml)")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&opts.Debug, "d", false, "Enable debug logging (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&cli.script, "script", "", "Run a Lua script headless")
	flag.StringVar(&cli.prompt, "prompt", "", "Generate an outline for the prompt headless")
	flag.StringVar(&cli.out, "out", "", "Export path (.png or .jpg); lets scripts export")
	flag.IntVar(&cli.width, "width", 0, "Canvas width in pixels")
	flag.IntVar(&cli.height, "height", 0, "Canvas height in pixels")
	flag.BoolVar(&opts.AllowWrite, "allow-write", false, "Let scripts write files with canvas.export")
	flag.BoolVar(&cli.noWatch, "no-watch", false, "Do not reload the config file when it changes")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "inkwell - terminal sketchpad with undo history\n\n")
		fmt.Fprintf(os.Stderr, "Usage: inkwell [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  inkwell                               Draw in the terminal\n")
		fmt.Fprintf(os.Stderr, "  inkwell -c inkwell.toml               Use a config file\n")
		fmt.Fprintf(os.Stderr, "  inkwell -script draw.lua -out a.png   Run a script and export\n")
		fmt.Fprintf(os.Stderr, "  inkwell -prompt \"a lighthouse\"        Generate an outline\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("inkwell %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	// Validate log level
	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
		// Valid
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	if cli.script != "" && cli.prompt != "" {
		fmt.Fprintln(os.Stderr, "Error: -script and -prompt are mutually exclusive")
		os.Exit(1)
	}

	opts.Overrides = map[string]any{}
	if cli.width > 0 {
		opts.Overrides["canvas.width"] = cli.width
	}
	if cli.height > 0 {
		opts.Overrides["canvas.height"] = cli.height
	}

	return opts, cli
}
