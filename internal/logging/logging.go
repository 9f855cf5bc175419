// Package logging builds the process-wide slog logger. When a log file
// is configured, output goes through a size-rotated file and stderr;
// otherwise stderr only.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options for Setup. Zero values mean stderr-only at info level.
type Options struct {
	Level      string // debug, info, warn, error
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Setup constructs the logger and installs it as slog's default.
func Setup(opts Options) *slog.Logger {
	var w io.Writer = os.Stderr
	if opts.File != "" {
		if opts.MaxSizeMB == 0 {
			opts.MaxSizeMB = 100
		}
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, rotated)
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLevel(opts.Level),
	}))
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
