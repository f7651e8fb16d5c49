// Package httpclient is the shared HTTP client for the worker's HTTP
// collaborators (LLM providers, the self-hosted transcription service and
// the speaker-embedding service).
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/morse-fitness/morse-worker/internal/errors"
)

const (
	// DefaultTimeout applies when the request context has no deadline.
	DefaultTimeout = 30 * time.Second

	defaultMaxIdleConnsPerHost   = 10
	defaultIdleConnTimeout       = 90 * time.Second
	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultResponseHeaderTimeout = 2 * time.Minute
	defaultDialTimeout           = 30 * time.Second

	defaultUserAgent = "morse-worker"

	// maxErrorBody bounds how much of a failed response is kept in the error.
	maxErrorBody = 2048
)

// Client wraps http.Client with per-request deadlines, a User-Agent and
// observability hooks. Safe for concurrent use.
type Client struct {
	client         *http.Client
	defaultTimeout time.Duration
	userAgent      string

	hookMu        sync.RWMutex
	afterResponse func(*http.Request, *http.Response, time.Duration, error)
}

// Config holds configuration for creating an HTTP client.
type Config struct {
	DefaultTimeout time.Duration
	UserAgent      string
	// ResponseHeaderTimeout bounds the wait for headers; model calls are slow.
	ResponseHeaderTimeout time.Duration
}

// New creates a client. A nil cfg uses defaults.
func New(cfg *Config) *Client {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.ResponseHeaderTimeout <= 0 {
		c.ResponseHeaderTimeout = defaultResponseHeaderTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: c.ResponseHeaderTimeout,
	}

	return &Client{
		client:         &http.Client{Transport: transport},
		defaultTimeout: c.DefaultTimeout,
		userAgent:      c.UserAgent,
	}
}

// HTTPClient exposes the underlying client, e.g. for SDKs that accept one.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// Do executes req. When ctx has no deadline the default timeout is applied.
// The response body must be closed by the caller if err is nil.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cancel := context.CancelFunc(func() {})
	if _, ok := ctx.Deadline(); !ok && c.defaultTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.defaultTimeout)
	}
	req = req.WithContext(ctx)

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.client.Do(req)

	c.hookMu.RLock()
	hook := c.afterResponse
	c.hookMu.RUnlock()
	if hook != nil {
		hook(req, resp, time.Since(start), err)
	}

	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// PostJSON marshals in, posts it to url with the extra headers and decodes
// a 2xx JSON response into out. Non-2xx responses return a *StatusError.
// service names the collaborator in returned errors.
func (c *Client) PostJSON(ctx context.Context, service, url string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.New(fmt.Errorf("encode %s request: %w", service, err)).
			Component("httpclient").
			Category(errors.CategoryValidation).
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.New(fmt.Errorf("build %s request: %w", service, err)).
			Component("httpclient").
			Category(errors.CategoryConfiguration).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		category := errors.CategoryNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			category = errors.CategoryTimeout
		}
		return errors.New(fmt.Errorf("%s request: %w", service, err)).
			Component("httpclient").
			Category(category).
			Context("service", service).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.New(&StatusError{Service: service, Code: resp.StatusCode, Body: string(snippet)}).
			Component("httpclient").
			Category(errors.CategoryHTTP).
			Context("service", service).
			Context("status", resp.StatusCode).
			Build()
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New(fmt.Errorf("decode %s response: %w", service, err)).
			Component("httpclient").
			Category(errors.CategoryIntegration).
			Context("service", service).
			Build()
	}
	return nil
}

// StatusError is a non-2xx response from a collaborator.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.Code, e.Body)
}

// SetAfterResponseHook sets a function called after each request with its
// duration. Safe to call concurrently with Do.
func (c *Client) SetAfterResponseHook(fn func(*http.Request, *http.Response, time.Duration, error)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.afterResponse = fn
}

// Close closes idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
