// Package logging builds the process slog handler: colorized text for a
// terminal, JSON everywhere else.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"ascendfit/config"
)

// Format values accepted in LogConfig.Format
const (
	FormatAuto = ""
	FormatJSON = "json"
	FormatText = "text"
)

// ParseLevel maps a level name to slog.Level. Unknown names yield Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// NewHandler returns a handler writing to w. Text output is colorized only on a
// terminal; auto format picks text on a terminal and JSON otherwise.
func NewHandler(cfg config.LogConfig, w io.Writer) slog.Handler {
	level := ParseLevel(cfg.Level)

	text := strings.EqualFold(cfg.Format, FormatText)
	if cfg.Format == FormatAuto {
		text = isTerminal(w)
	}

	if text {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(w),
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// Setup installs the default logger on stdout.
func Setup(cfg config.LogConfig) *slog.Logger {
	logger := slog.New(NewHandler(cfg, os.Stdout))
	slog.SetDefault(logger)
	return logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
