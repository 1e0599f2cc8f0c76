// Package logger provides the resolver's process-wide structured logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the package-level logger. Init/InitWithConfig replace it;
// until then it defaults to an info-level JSON logger on stdout.
var Log = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// Config controls the logger's level, encoding, and destination.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, text
	Output     string // stdout, stderr, file
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Init sets up a stdout JSON logger at the given level.
func Init(level string) {
	InitWithConfig(Config{Level: level, Format: "json", Output: "stdout"})
}

// InitWithConfig replaces Log according to cfg.
func InitWithConfig(cfg Config) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer
	switch cfg.Output {
	case "stderr":
		w = os.Stderr
	case "file":
		path := cfg.FilePath
		if path == "" {
			path = "logs/resolver.log"
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			w = os.Stdout
		} else {
			w = &lumberjack.Logger{
				Filename:   path,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   cfg.Compress,
			}
		}
	default:
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	Log = slog.New(handler)
}

// With returns a child logger tagged with the given component name.
func With(component string) *slog.Logger {
	return Log.With("component", component)
}
