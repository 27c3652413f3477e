// Package transport builds the HTTP clients used to reach the settlement
// endpoint and the completion oracle.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// =============================================================================
// TLS FINGERPRINT TRANSPORT
// =============================================================================
//
// Settlement gateways often sit behind CDNs that rate limit on the JA3
// fingerprint of Go's TLS client. With chrome enabled, HTTPS requests go
// through uTLS (HelloChrome_Auto) and ALPN picks h2 or http/1.1:
//
//   1. https → http2.Transport over a uTLS conn, falling back to HTTP/1.1
//   2. http  → plain HTTP/1.1 (local services, tests)
//
// =============================================================================

// NewHTTPClient returns a client for JSON round trips. The client timeout
// bounds a whole exchange; callers still pass a context deadline per call.
func NewHTTPClient(timeout time.Duration, chrome bool) *http.Client {
	client := &http.Client{Timeout: timeout}
	if chrome {
		client.Transport = NewChromeTransport(timeout)
	}
	return client
}

// NewChromeTransport creates an http.RoundTripper that presents Chrome's TLS
// fingerprint to HTTPS endpoints.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: timeout}

	h2Transport := &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
	}

	h1Transport := &http.Transport{
		DialContext: dialer.DialContext,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
		ForceAttemptHTTP2:   false,
		TLSHandshakeTimeout: timeout,
	}

	return &chromeTransport{h2: h2Transport, h1: h1Transport}
}

// chromeTransport routes by scheme: HTTPS tries h2 first, HTTP goes straight to h1.
type chromeTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

// RoundTrip implements http.RoundTripper.
func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	// Request bodies are single-use; only retry when the body can be replayed
	if req.Body != nil && req.GetBody == nil {
		return nil, err
	}
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, fmt.Errorf("rewinding body: %w", bodyErr)
		}
		retry.Body = body
	}
	return t.h1.RoundTrip(retry)
}

// CloseIdleConnections releases pooled connections on both transports.
func (t *chromeTransport) CloseIdleConnections() {
	t.h2.CloseIdleConnections()
	t.h1.CloseIdleConnections()
}

// dialChromeTLS establishes a TLS connection with Chrome's fingerprint.
func dialChromeTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	// Extract hostname for SNI
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tlsConn, nil
}
