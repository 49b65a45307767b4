// Package providers holds the concrete satellite data sources: HTTP
// adapters for the imagery backends and the in-process ICAR baseline.
package providers

import (
	"net"
	"net/http"
	"strings"
	"time"
)

// ClientConfig bundles the HTTP settings shared by all upstream
// adapters.
type ClientConfig struct {
	APIKey string

	// Optional connection pool settings
	MaxIdleConns        int // default: 100
	MaxIdleConnsPerHost int // default: 100

	// Custom HTTP client (for testing or special configs)
	HTTPClient *http.Client
}

// WithDefaults returns a copy of ClientConfig with sane defaults
// applied.
func (c *ClientConfig) WithDefaults() ClientConfig {
	cfg := *c

	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 100
	}

	return cfg
}

// httpClient returns the configured client or builds a pooled default.
func (c ClientConfig) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{
		Transport: defaultTransport(c),
	}
}

// defaultTransport creates a production-ready HTTP transport with
// connection pooling and reasonable timeouts.
func defaultTransport(cfg ClientConfig) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// trimBase normalizes a base URL so paths can be appended safely.
func trimBase(u string) string {
	return strings.TrimRight(u, "/")
}
