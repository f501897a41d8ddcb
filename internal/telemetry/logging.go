package telemetry

import (
	"log/slog"
	"os"
)

// LogLevel resolves the minimum level from the LOG_LEVEL environment
// variable. Accepted values: DEBUG, INFO, WARN, ERROR. Defaults to INFO.
func LogLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger initializes the process-wide logger and returns it.
//
// LOG_FORMAT selects the handler: "json" for machine-readable output,
// anything else (default) for human-readable text.
func SetupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     LogLevel(),
		AddSource: LogLevel() == slog.LevelDebug,
	}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// WithProfile returns a logger carrying the profile identity, so every
// line from one pipeline run is attributable to its profile.
func WithProfile(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("profile", name)
}

// WithRunID returns a logger carrying the batch run id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}
