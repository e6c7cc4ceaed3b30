// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRPCTimeout applies to calls issued without an explicit timeout.
const DefaultRPCTimeout = 60 * time.Second

const defaultHandshakeTimeout = 10 * time.Second

// Config carries the connection-wide settings. The TLS material is opaque to
// the core; it is handed to the transport (and the HTTP server-info helper)
// as-is.
type Config struct {
	// DefaultTimeout is applied to RPC calls that pass a zero timeout.
	DefaultTimeout time.Duration

	// HandshakeTimeout bounds the transport connection handshake.
	HandshakeTimeout time.Duration

	// PEM-encoded transport security material. All three are optional;
	// CertificateAuthority alone enables server verification against a
	// private CA, the client pair enables mutual TLS.
	CertificateAuthority []byte
	ClientCertificate    []byte
	ClientKey            []byte

	// Logger receives dispatch-loop observability: malformed frames,
	// unknown emitter ids, late responses. Defaults to a no-op logger.
	Logger zerolog.Logger

	transport string
	codec     Codec
}

func defaultConfig() *Config {
	return &Config{
		DefaultTimeout:   DefaultRPCTimeout,
		HandshakeTimeout: defaultHandshakeTimeout,
		Logger:           zerolog.Nop(),
		transport:        DefaultTransport,
		codec:            defaultCodec,
	}
}

// tlsConfig assembles a tls.Config from the PEM material, or nil when no
// material is configured.
func (c *Config) tlsConfig() (*tls.Config, error) {
	if len(c.CertificateAuthority) == 0 && len(c.ClientCertificate) == 0 && len(c.ClientKey) == 0 {
		return nil, nil
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if len(c.CertificateAuthority) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(c.CertificateAuthority) {
			return nil, errors.New("nuclide: invalid certificate authority PEM")
		}
		cfg.RootCAs = pool
	}

	if len(c.ClientCertificate) > 0 || len(c.ClientKey) > 0 {
		cert, err := tls.X509KeyPair(c.ClientCertificate, c.ClientKey)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

// httpClient creates a fresh HTTP client for the server-info helper with
// disabled connection reuse. This avoids EOF errors that can occur with
// connection pooling in complex process hierarchies.
func (c *Config) httpClient() (*http.Client, error) {
	tlsCfg, err := c.tlsConfig()
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DisableKeepAlives: true, // Disable connection reuse to avoid EOF issues
			TLSClientConfig:   tlsCfg,
		},
	}, nil
}
