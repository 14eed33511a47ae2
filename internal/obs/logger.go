package obs

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger writes to stdout: colored text in dev, JSON elsewhere.
func NewLogger(env string) *slog.Logger {
	return NewLoggerTo(os.Stdout, env, true)
}

// NewLoggerTo builds the same logger over w. Color is only useful when w
// is a terminal.
func NewLoggerTo(w io.Writer, env string, color bool) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" || env == "local" || env == "development" {
		level = slog.LevelDebug
		handler := tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
			AddSource:  true,
			NoColor:    !color,
		})
		return slog.New(handler)
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	})
	return slog.New(handler)
}

// OpenLogFile opens path for appending. The TUI owns the terminal, so the
// client logs here instead of stdout.
func OpenLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
