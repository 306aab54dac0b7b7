package util

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	level  = new(slog.LevelVar)
	logger atomic.Pointer[slog.Logger]
)

func init() {
	logger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// SetOutput replaces the log destination, keeping the current level.
func SetOutput(w io.Writer) {
	logger.Store(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// SetLevel accepts debug, info, warn or error.
func SetLevel(name string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	level.Set(l)
	return nil
}

// Logger exposes the underlying structured logger.
func Logger() *slog.Logger {
	return logger.Load()
}

func logf(l slog.Level, format string, v ...any) {
	lg := logger.Load()
	if !lg.Enabled(context.Background(), l) {
		return
	}
	lg.Log(context.Background(), l, strings.TrimRight(fmt.Sprintf(format, v...), "\n"))
}

func Debug(format string, v ...any) {
	logf(slog.LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	logf(slog.LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	logf(slog.LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	logf(slog.LevelError, format, v...)
}

// Fatal logs at error level and exits the process.
func Fatal(format string, v ...any) {
	logf(slog.LevelError, format, v...)
	os.Exit(1)
}
