// Package logger builds the application-wide structured logger.
package logger

import (
	"log/slog"
	"os"
)

// New returns a text slog.Logger writing to stdout.  Debug level is
// enabled outside prod so local runs show the full delivery and
// transition trail.
func New(env string) *slog.Logger {
	level := slog.LevelDebug
	if env == "prod" {
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("app", "ticket-office", "env", env)
}
