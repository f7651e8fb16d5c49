// Package app builds the worker's components from settings. Commands share
// one Context: configuration and logging are set up once before any
// subcommand runs.
package app

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/morse-fitness/morse-worker/internal/buildinfo"
	"github.com/morse-fitness/morse-worker/internal/conf"
	"github.com/morse-fitness/morse-worker/internal/logger"
	"github.com/morse-fitness/morse-worker/internal/telemetry"
)

const sentryFlushTimeout = 2 * time.Second

// Context carries settings and the central logger across commands.
type Context struct {
	ConfigFile string
	Debug      bool
	Bindings   []conf.FlagBinding

	Settings  *conf.Settings
	BuildInfo buildinfo.Context

	logs   *logger.CentralLogger
	sentry bool
}

// New returns an uninitialized Context.
func New() *Context {
	return &Context{BuildInfo: buildinfo.Current()}
}

// Init loads configuration, installs the central logger as the process
// logger and enables error reporting when configured.
func (c *Context) Init() error {
	settings, err := conf.Load(c.ConfigFile, c.Bindings...)
	if err != nil {
		return err
	}
	if c.Debug {
		settings.Debug = true
	}
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}
	c.Settings = settings

	logs, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	c.logs = logs
	logger.SetGlobal(logs.Module("main"))

	enabled, err := telemetry.InitSentry(&settings.Telemetry, c.BuildInfo)
	if err != nil {
		c.Logger("telemetry").Warn("error reporting disabled", logger.Error(err))
	}
	c.sentry = enabled
	return nil
}

// Bind lets a command line flag override a configuration key.
func (c *Context) Bind(key string, flag *pflag.Flag) {
	c.Bindings = append(c.Bindings, conf.FlagBinding{Key: key, Flag: flag})
}

// Logger returns the logger of a module.
func (c *Context) Logger(module string) logger.Logger {
	if c.logs == nil {
		return logger.Global().Module(module)
	}
	return c.logs.Module(module)
}

// RotateLogs rolls the log file over, if file output is enabled.
func (c *Context) RotateLogs() error {
	return c.logs.Rotate()
}

// Close flushes telemetry and log files.
func (c *Context) Close() {
	if c.sentry {
		telemetry.Flush(sentryFlushTimeout)
	}
	if c.logs != nil {
		_ = c.logs.Close()
	}
}
