// File: internal/network/httpclient.go
package network

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Constants for default TCP/HTTP settings, tuned for many small requests
// against third-party OSINT services.
const (
	DefaultDialTimeout           = 5 * time.Second
	DefaultKeepAliveInterval     = 15 * time.Second
	DefaultTLSHandshakeTimeout   = 5 * time.Second
	DefaultResponseHeaderTimeout = 10 * time.Second

	DefaultMaxIdleConns        = 64
	DefaultMaxIdleConnsPerHost = 8
	DefaultIdleConnTimeout     = 30 * time.Second

	// maxResponseBytes caps how much of a response body is read. OSINT
	// endpoints occasionally return enormous payloads (crt.sh on a large
	// org); collectors only need the first few megabytes.
	maxResponseBytes = 8 << 20
)

// HTTPClient is the outbound boundary used by collectors. Keeping it an
// interface makes collector parsing testable without a network.
type HTTPClient interface {
	// Get issues a GET request and returns the response body and status
	// code. A non-2xx status is not an error; the caller classifies it.
	Get(ctx context.Context, url string) (body []byte, statusCode int, err error)
}

// Client is the production HTTPClient backed by a tuned http.Transport. It
// is safe for concurrent use by multiple goroutines.
type Client struct {
	http   *http.Client
	logger *zap.Logger
	ua     string
}

// NewClient builds a Client. Per-request deadlines come from the caller's
// context, so the underlying http.Client carries no overall timeout.
func NewClient(logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   DefaultDialTimeout,
			KeepAlive: DefaultKeepAliveInterval,
		}).DialContext,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		MaxIdleConns:          DefaultMaxIdleConns,
		MaxIdleConnsPerHost:   DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
	}

	return &Client{
		http:   &http.Client{Transport: transport},
		logger: logger.Named("httpclient"),
		ua:     "dossier-cli/" + "1.0",
	}
}

// Get implements HTTPClient.
func (c *Client) Get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response body from %s: %w", url, err)
	}

	c.logger.Debug("GET completed",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))

	return body, resp.StatusCode, nil
}
