package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"FinanceCollector/internal/config"
)

// New creates a console slog.Logger with provided level string.
func New(level string) *slog.Logger {
	return slog.New(newHandler(os.Stdout, level))
}

// FromConfig builds a logger writing to stdout, stderr or a rotated file.
// The returned closer releases the file and is a no-op for console output.
func FromConfig(cfg config.LoggingConfig) (*slog.Logger, io.Closer) {
	out, closer := output(cfg)
	return slog.New(newHandler(out, cfg.Level)), closer
}

func output(cfg config.LoggingConfig) (io.Writer, io.Closer) {
	switch target := strings.TrimSpace(cfg.Output); strings.ToLower(target) {
	case "", "stdout":
		return os.Stdout, nopCloser{}
	case "stderr":
		return os.Stderr, nopCloser{}
	default:
		w := &lumberjack.Logger{
			Filename:   target,
			MaxSize:    cfg.MaxSizeMB,
			MaxAge:     cfg.MaxAgeDays,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}
		return w, w
	}
}

func newHandler(w io.Writer, level string) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: levelFromString(level),
	})
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
