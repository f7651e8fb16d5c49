package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient returns a Client that is closed when the test ends.
func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	c := New(cfg)
	t.Cleanup(c.Close)
	return c
}

// newTestServer serves handler until the test ends. It stands in for the
// embedding and transcription services.
func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	s := httptest.NewServer(handler)
	t.Cleanup(s.Close)
	return s
}
