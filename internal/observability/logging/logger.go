package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New builds the process-wide structured logger. Output is always JSON on
// stdout; every record carries the service name so api and worker logs can
// share one stream.
func New(service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	logger := slog.New(handler).With("service", service)
	// Third-party code logging through the default logger lands in the same
	// stream with the same level.
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}
