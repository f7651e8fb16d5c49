// Package testutil provides shared helpers for the worker's tests: a migrated
// SQLite store with seed helpers, WAV fixtures and channel waits.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// DefaultTestTimeout bounds waits on background worker activity.
const DefaultTestTimeout = 5 * time.Second

// WaitForChannel returns the next value received on ch, or fails the test
// after timeout. A closed channel counts as a signal.
func WaitForChannel[T any](t *testing.T, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v := <-ch:
		return v
	case <-timer.C:
		require.Fail(t, msg)
	}
	var zero T
	return zero
}
