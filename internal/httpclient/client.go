// Package httpclient builds the HTTP client used for engine requests, with
// a tuned connection pool, a default timeout, User-Agent injection and an
// observer hook for metrics.
package httpclient

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	// DefaultTimeout applies when the request context has no deadline
	DefaultTimeout = 30 * time.Second

	defaultMaxIdleConns          = 20
	defaultMaxIdleConnsPerHost   = 4
	defaultIdleConnTimeout       = 90 * time.Second
	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultDialTimeout           = 10 * time.Second
	defaultDialKeepAlive         = 30 * time.Second
)

// Observer is called after every request with the outcome and elapsed
// time. resp is nil when err is set.
type Observer func(req *http.Request, resp *http.Response, err error, elapsed time.Duration)

// Config holds configuration for creating an HTTP client.
type Config struct {
	// DefaultTimeout is the timeout applied if request context has no deadline
	DefaultTimeout time.Duration

	// UserAgent is added to requests that do not set one
	UserAgent string

	// MaxIdleConnsPerHost controls the per-host connection pool
	MaxIdleConnsPerHost int

	// ResponseHeaderTimeout bounds the wait for response headers; zero
	// disables it, which suits slow transcription servers
	ResponseHeaderTimeout time.Duration

	Observer Observer
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:      DefaultTimeout,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
	}
}

// New creates an *http.Client. A nil cfg uses DefaultConfig; the caller's
// config is not modified.
func New(cfg *Config) *http.Client {
	var c Config
	if cfg == nil {
		c = DefaultConfig()
	} else {
		c = *cfg
		if c.DefaultTimeout == 0 {
			c.DefaultTimeout = DefaultTimeout
		}
		if c.MaxIdleConnsPerHost == 0 {
			c.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
		}
	}

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: defaultDialKeepAlive,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   c.MaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: c.ResponseHeaderTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}

	return &http.Client{
		// No client timeout, it is applied per request from the context
		Transport: Wrap(base, &c),
	}
}

// Wrap adds default timeout, User-Agent and observer handling to next
func Wrap(next http.RoundTripper, cfg *Config) http.RoundTripper {
	return &transport{
		next:           next,
		defaultTimeout: cfg.DefaultTimeout,
		userAgent:      cfg.UserAgent,
		observer:       cfg.Observer,
	}
}

type transport struct {
	next           http.RoundTripper
	defaultTimeout time.Duration
	userAgent      string
	observer       Observer
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && t.defaultTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.defaultTimeout)
	}

	// RoundTrip must not modify the caller's request
	req = req.Clone(ctx)
	if req.Header.Get("User-Agent") == "" && t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if t.observer != nil {
		t.observer(req, resp, err, time.Since(start))
	}

	if cancel != nil {
		if err != nil {
			cancel()
		} else {
			// the deadline must outlive RoundTrip until the body is read
			resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
		}
	}
	return resp, err
}

// cancelBody releases the request timeout when the body is closed
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
