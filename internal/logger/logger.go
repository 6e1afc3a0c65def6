package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
)

// Init initializes the default logger with a JSON handler writing to os.Stderr.
// The level is read from the PULSE_LOG_LEVEL environment variable (debug,
// info, warn, error) and defaults to info. Init is safe to call repeatedly;
// only the first call takes effect.
func Init() {
	once.Do(func() {
		defaultLogger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: levelFromEnv(),
		}))
		slog.SetDefault(defaultLogger)
	})
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("PULSE_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the initialized default logger, initializing it if needed.
func Get() *slog.Logger {
	Init()
	return defaultLogger
}

// Info logs an informational message using the default logger.
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Warn logs a warning message using the default logger.
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs an error message using the default logger.
func Error(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	Get().Error(msg, args...)
}

// Debug logs a debug message using the default logger.
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}
