// Package log builds the structured loggers used across ipusage.
//
// Components never reach for a package-level logger: they receive a
// logger.Logger when constructed. Only the command layer keeps the default
// logger configured from the global flags.
package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/paularlott/logger"
	logslog "github.com/paularlott/logger/slog"
)

var (
	mu            sync.RWMutex
	defaultLogger = New("info", "console")
)

// New creates a logger writing to stderr
func New(level, format string) logger.Logger {
	return NewWithWriter(level, format, os.Stderr)
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(level, format string, w io.Writer) logger.Logger {
	return logslog.New(logslog.Config{
		Level:  normalizeLevel(level),
		Format: normalizeFormat(format),
		Writer: w,
	})
}

// Null returns a logger that discards everything
func Null() logger.Logger {
	return logger.NewNullLogger()
}

// OrNull returns l, or a discarding logger when l is nil
func OrNull(l logger.Logger) logger.Logger {
	if l == nil {
		return Null()
	}
	return l
}

// Configure replaces the default logger used by the command layer
func Configure(level, format string) {
	l := New(level, format)
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

// Default returns the logger configured by Configure
func Default() logger.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func normalizeLevel(level string) string {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "trace", "debug", "info", "warn", "error":
		return l
	case "warning":
		return "warn"
	default:
		return "info"
	}
}

func normalizeFormat(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return "json"
	}
	return "console"
}
