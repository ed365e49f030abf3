package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

// setupLogging installs the default slog logger. Defaults: level=info, format=text.
func setupLogging(w io.Writer, level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	unknownLevel := false
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		unknownLevel = true
	}

	format = strings.ToLower(format) // text | json | pretty
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	case "pretty":
		// charm levels share slog's numeric values
		handler = log.NewWithOptions(w, log.Options{Level: log.Level(lvl), ReportTimestamp: true})
	default:
		format = "text"
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	if unknownLevel {
		logger.Warn("unknown LOG_LEVEL, using info", slog.String("value", level))
	}
	logger.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
	return logger
}
