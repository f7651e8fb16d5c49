package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// NewSlogLogger returns a module-less Logger writing text to w.
// A nil writer means stdout and a nil timezone means time.Local.
// Tests use it with a bytes.Buffer or io.Discard.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	if w == nil {
		w = os.Stdout
	}
	if tz == nil {
		tz = time.Local
	}
	lvl := parseSlogLevel(level)
	return &moduleLogger{
		logger:   slog.New(newTextHandler(w, lvl)),
		level:    lvl,
		timezone: tz,
	}
}

// NewJSONLogger is NewSlogLogger with JSON output and timestamps.
func NewJSONLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	if w == nil {
		w = os.Stdout
	}
	if tz == nil {
		tz = time.Local
	}
	lvl := parseSlogLevel(level)
	return &moduleLogger{
		logger:   slog.New(newJSONHandler(w, lvl, tz)),
		level:    lvl,
		timezone: tz,
	}
}

// NewDiscard returns a Logger that drops everything.
func NewDiscard() Logger {
	return NewSlogLogger(io.Discard, LogLevelError, time.UTC)
}

var (
	globalLogger   Logger
	globalLoggerMu sync.RWMutex
)

// SetGlobal installs the process logger. Called once by the root command.
func SetGlobal(l Logger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = l
}

// Global returns the process logger, or a console logger at info level when
// none has been installed.
func Global() Logger {
	globalLoggerMu.RLock()
	l := globalLogger
	globalLoggerMu.RUnlock()
	if l != nil {
		return l
	}
	return NewSlogLogger(os.Stdout, LogLevelInfo, nil)
}
