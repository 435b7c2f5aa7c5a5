package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var (
	// Logger is the global slog logger instance
	Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
)

// Init initializes the global logger with the level from the LOG_LEVEL environment variable
// and the output format from LOG_FORMAT ("json" or "text"). Default is info/json.
func Init() {
	InitWith(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), os.Stdout)
}

// InitWith initializes the global logger with an explicit level, format and writer
func InitWith(levelStr, format string, w io.Writer) {
	if levelStr == "" {
		levelStr = "info"
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(levelStr),
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	Logger = slog.New(handler).With("service", "nba-predictor-ui")
	slog.SetDefault(Logger)

	Logger.Debug("Logger initialized", "level", levelStr)
}

// ParseLevel maps a level name to a slog level, falling back to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying the given attributes
func With(args ...any) *slog.Logger {
	return Logger.With(args...)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}
