package logger

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// NewSlogLogger creates a standalone JSON logger writing to w. It is meant
// for tests and tools that run without a CentralLogger.
func NewSlogLogger(w io.Writer, level LogLevel, timezone *time.Location) Logger {
	if w == nil {
		w = os.Stdout
	}
	if timezone == nil {
		timezone = time.UTC
	}

	lvl := parseSlogLevel(level)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				a.Value = slog.TimeValue(a.Value.Time().In(timezone))
			}
			return a
		},
	})

	return &moduleLogger{logger: slog.New(handler), level: lvl}
}
