package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup initializes the global structured logger.
// In production, it uses JSON format; in development, text format.
func Setup(env string) *slog.Logger {
	l := New(os.Stdout, env)
	slog.SetDefault(l)
	return l
}

// New builds the logger Setup installs, writing to w.
func New(w io.Writer, env string) *slog.Logger {
	var handler slog.Handler
	if env == "production" || env == "prod" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(handler)
}
