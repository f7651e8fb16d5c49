package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "time/tzdata"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/morse-fitness/morse-worker/internal/errors"
)

// traceLevelValue sits below slog.LevelDebug (-4)
const traceLevelValue = slog.Level(-8)

// CentralLogger owns the output handlers and hands out module loggers.
// Module levels are configured by dotted name; "pipeline.session" falls back
// to "pipeline" and then to the default level.
type CentralLogger struct {
	config   *LoggingConfig
	timezone *time.Location
	handler  slog.Handler
	file     *lumberjack.Logger

	mu     sync.RWMutex
	levels map[string]slog.Level
}

// NewCentralLogger creates the process logger from cfg.
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging config cannot be nil")
	}
	applyConfigDefaults(cfg)

	tz, err := loadTimezone(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	cl := &CentralLogger{
		config:   cfg,
		timezone: tz,
		levels:   make(map[string]slog.Level, len(cfg.ModuleLevels)),
	}
	for module, level := range cfg.ModuleLevels {
		cl.levels[module] = parseLogLevel(level)
	}

	if err := cl.buildHandler(); err != nil {
		return nil, fmt.Errorf("failed to create log handler: %w", err)
	}
	return cl, nil
}

func loadTimezone(name string) (*time.Location, error) {
	switch name {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	tz, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", name, err)
	}
	return tz, nil
}

// buildHandler wires console text output and rotated JSON file output.
func (cl *CentralLogger) buildHandler() error {
	var outputs []slog.Handler

	if c := cl.config.Console; c != nil && c.Enabled {
		outputs = append(outputs, newTextHandler(os.Stdout, parseLogLevel(c.Level)))
	}

	if fo := cl.config.FileOutput; fo != nil && fo.Enabled {
		if err := ensureFileDirectory(fo.Path); err != nil {
			return err
		}
		cl.file = &lumberjack.Logger{
			Filename:   fo.Path,
			MaxSize:    fo.MaxSize,
			MaxAge:     fo.MaxAge,
			MaxBackups: fo.MaxRotatedFiles,
			Compress:   fo.Compress,
			LocalTime:  cl.timezone != time.UTC,
		}
		outputs = append(outputs, newJSONHandler(cl.file, parseLogLevel(fo.Level), cl.timezone))
	}

	switch len(outputs) {
	case 0:
		cl.handler = newTextHandler(os.Stdout, parseLogLevel(cl.config.DefaultLevel))
	case 1:
		cl.handler = outputs[0]
	default:
		cl.handler = newMultiWriterHandler(outputs...)
	}
	return nil
}

// Module returns a logger for the named module.
func (cl *CentralLogger) Module(name string) Logger {
	if cl == nil {
		return nil
	}
	return &moduleLogger{
		module:   name,
		logger:   slog.New(cl.handler),
		level:    cl.levelFor(name),
		timezone: cl.timezone,
		levels:   cl,
	}
}

// levelFor resolves the level of a dotted module name.
func (cl *CentralLogger) levelFor(module string) slog.Level {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	for name := module; name != ""; {
		if level, ok := cl.levels[name]; ok {
			return level
		}
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			break
		}
		name = name[:i]
	}
	return parseLogLevel(cl.config.DefaultLevel)
}

// SetModuleLevel changes the level of loggers created for module afterwards.
func (cl *CentralLogger) SetModuleLevel(module string, level LogLevel) {
	cl.mu.Lock()
	cl.levels[module] = parseSlogLevel(level)
	cl.mu.Unlock()
}

// Rotate forces the file output to roll over. Hooked to SIGHUP by the worker command.
func (cl *CentralLogger) Rotate() error {
	if cl == nil || cl.file == nil {
		return nil
	}
	return cl.file.Rotate()
}

// Close closes the file output.
func (cl *CentralLogger) Close() error {
	if cl == nil || cl.file == nil {
		return nil
	}
	err := cl.file.Close()
	cl.file = nil
	if err != nil {
		return errors.New(fmt.Errorf("failed to close log file: %w", err)).
			Component("logger").
			Category(errors.CategoryFileIO).
			Build()
	}
	return nil
}

// Flush is a no-op: lumberjack writes through to the file on every record.
func (cl *CentralLogger) Flush() error {
	return nil
}

func ensureFileDirectory(path string) error {
	dir := filepath.Dir(path)
	if path == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return traceLevelValue
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseSlogLevel(level LogLevel) slog.Level {
	return parseLogLevel(string(level))
}
