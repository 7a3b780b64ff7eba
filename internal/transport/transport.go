// Package transport provides the HTTP round-trippers used by the catalog client.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Mode selects how the catalog client dials TLS.
type Mode string

const (
	// ModeStandard uses net/http's default transport.
	ModeStandard Mode = "standard"

	// ModeChrome presents a Chrome TLS fingerprint. Some storefront CDNs
	// throttle Go's handshake signature; this gets the catalog through.
	ModeChrome Mode = "chrome"
)

// ParseMode maps a config value to a Mode. Empty means ModeStandard.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStandard:
		return ModeStandard, nil
	case ModeChrome:
		return ModeChrome, nil
	default:
		return "", fmt.Errorf("unknown transport mode %q (want standard or chrome)", s)
	}
}

// New returns the round-tripper for mode.
func New(mode Mode, timeout time.Duration) http.RoundTripper {
	if mode == ModeChrome {
		return NewChromeTransport(timeout)
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSHandshakeTimeout = timeout
	return t
}

// NewChromeTransport creates an http.RoundTripper with Chrome's TLS
// fingerprint (uTLS HelloChrome_Auto). ALPN decides between HTTP/2 framing
// via x/net/http2 and plain HTTP/1.1.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: timeout}
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialChromeTLS(ctx, dialer, network, addr)
	}

	return &chromeTransport{
		h2: &http2.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dial(ctx, network, addr)
			},
		},
		h1: &http.Transport{
			DialTLSContext:      dial,
			TLSHandshakeTimeout: timeout,
		},
	}
}

type chromeTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

// RoundTrip tries HTTP/2 and falls back to HTTP/1.1. Plain-http catalog
// URLs (local dev server) skip TLS entirely.
func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == "http" {
		return t.h1.RoundTrip(req)
	}
	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	return t.h1.RoundTrip(req)
}

func dialChromeTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dialing catalog: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tlsConn, nil
}
