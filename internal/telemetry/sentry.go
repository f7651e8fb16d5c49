// Package telemetry sets up Sentry error reporting.
//
// Reporting is off unless a DSN is configured. Events are stripped of user,
// host and runtime details before they leave the process.
package telemetry

import (
	"fmt"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/morse-fitness/morse-worker/internal/buildinfo"
	"github.com/morse-fitness/morse-worker/internal/conf"
	"github.com/morse-fitness/morse-worker/internal/errors"
)

// InitSentry initializes the Sentry SDK and routes enhanced errors to it.
// It reports whether reporting is enabled.
func InitSentry(settings *conf.TelemetrySettings, info buildinfo.Context) (bool, error) {
	if settings.SentryDSN == "" {
		return false, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.SentryDSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      settings.Environment,
		ServerName:       "",
		Release:          info.Release(),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return false, fmt.Errorf("sentry initialization failed: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetContext("application", map[string]any{
			"name":    "morse-worker",
			"version": info.Version,
		})
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	return true, nil
}

// applyPrivacyFilters removes identifying data from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}

// Flush waits up to timeout for buffered events to be sent.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}
