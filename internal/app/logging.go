package app

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LogLevelDebug is for detailed debugging information.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is for general informational messages.
	LogLevelInfo
	// LogLevelWarn is for warning messages.
	LogLevelWarn
	// LogLevelError is for error messages.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Slog returns the matching slog level.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogLevel parses a string into a LogLevel. Unknown names are info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	// Level is the minimum log level to output.
	Level LogLevel
	// Output is where logs are written. Nil discards everything.
	Output io.Writer
	// JSON selects the JSON handler instead of text.
	JSON bool
}

// NewLogger creates a slog logger from cfg.
func NewLogger(cfg LoggerConfig) *slog.Logger {
	if cfg.Output == nil {
		return slog.New(slog.DiscardHandler)
	}
	opts := &slog.HandlerOptions{Level: cfg.Level.Slog()}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(cfg.Output, opts))
	}
	return slog.New(slog.NewTextHandler(cfg.Output, opts))
}

// WithComponent returns a logger that tags records with a component.
func WithComponent(l *slog.Logger, component string) *slog.Logger {
	return l.With("component", component)
}

// openLogOutput picks the log destination. Interactive sessions never log
// to the terminal they draw on: they log to path or nowhere.
func openLogOutput(path string, interactive bool) (io.Writer, io.Closer, error) {
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	}
	if interactive {
		return nil, nil, nil
	}
	return os.Stderr, nil, nil
}
