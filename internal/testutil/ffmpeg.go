package testutil

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// FakeTool stands in for an FFmpeg binary in tests.
type FakeTool struct {
	Path     string
	argsFile string
}

// Args returns the arguments of the last run, or nil if it never ran.
func (f *FakeTool) Args(t *testing.T) []string {
	t.Helper()

	data, err := os.ReadFile(f.argsFile)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

// NewFakeTool writes a shell script that records its arguments, prints
// stdout and stderr, and exits with code. Tests using it are skipped on
// Windows.
func NewFakeTool(t *testing.T, name string, stdout []byte, stderr string, code int) *FakeTool {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}

	dir := t.TempDir()
	out := filepath.Join(dir, name+".out")
	require.NoError(t, os.WriteFile(out, stdout, 0o600))
	errOut := filepath.Join(dir, name+".err")
	require.NoError(t, os.WriteFile(errOut, []byte(stderr), 0o600))

	tool := &FakeTool{
		Path:     filepath.Join(dir, name),
		argsFile: filepath.Join(dir, name+".args"),
	}
	script := fmt.Sprintf("#!/bin/sh\nprintf '%%s\\n' \"$@\" > '%s'\ncat '%s'\ncat '%s' >&2\nexit %d\n",
		tool.argsFile, out, errOut, code)
	require.NoError(t, os.WriteFile(tool.Path, []byte(script), 0o700))
	return tool
}

// PCM16 encodes samples as raw little-endian 16-bit PCM, the format the
// worker asks FFmpeg for.
func PCM16(samples ...int16) []byte {
	raw := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(s))
	}
	return raw
}

// WriteFile writes data to name in a temp directory and returns its path.
func WriteFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
