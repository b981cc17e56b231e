package telemetry

import (
	"log/slog"
	"os"
)

// InitLogger installs a JSON slog logger as the process default and
// returns it.
func InitLogger() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
