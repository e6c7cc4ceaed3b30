// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DialOption configures a connection
type DialOption func(*Config)

// WithDefaultTimeout sets the default RPC call timeout.
func WithDefaultTimeout(d time.Duration) DialOption {
	return func(c *Config) { c.DefaultTimeout = d }
}

// WithHandshakeTimeout bounds the transport handshake.
func WithHandshakeTimeout(d time.Duration) DialOption {
	return func(c *Config) { c.HandshakeTimeout = d }
}

// WithTLSMaterial supplies PEM-encoded security material, passed opaquely
// to the transport.
func WithTLSMaterial(ca, cert, key []byte) DialOption {
	return func(c *Config) {
		c.CertificateAuthority = ca
		c.ClientCertificate = cert
		c.ClientKey = key
	}
}

// WithLogger sets the logger for dispatch-loop observability.
func WithLogger(l zerolog.Logger) DialOption {
	return func(c *Config) { c.Logger = l }
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) DialOption {
	return func(c *Config) { c.transport = t }
}

// WithCodec sets a custom codec
func WithCodec(cd Codec) DialOption {
	return func(c *Config) { c.codec = cd }
}

// Dial connects to a remote service host using the default transport
// (WebSocket) and returns an open Client. Use WithTransport for transport
// selection. The connection is in the Connecting state for the duration of
// this call and Open once it returns.
func Dial(ctx context.Context, addr string, opts ...DialOption) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	transportsMu.RLock()
	dial, ok := transports[cfg.transport]
	transportsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("nuclide: unknown transport: %s", cfg.transport)
	}

	tr, err := dial(ctx, addr, cfg)
	if err != nil {
		return nil, err
	}
	return newClient(tr, cfg), nil
}

// NewClient wraps an already-established Transport. Use this when the
// process owns its own transport implementation; Dial covers the built-in
// ones.
func NewClient(transport Transport, opts ...DialOption) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return newClient(transport, cfg)
}
