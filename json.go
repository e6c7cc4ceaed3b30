// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	rpc "github.com/gorilla/rpc/v2/json2"
)

const (
	maxRetries    = 3
	retryBaseWait = 500 * time.Millisecond
)

// ServerInfo is what the service host reports over its HTTP control
// endpoint before the persistent connection is opened.
type ServerInfo struct {
	Version      string   `json:"version"`
	Port         int      `json:"port"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// FetchServerInfo asks the host's HTTP control endpoint for its version,
// port, and capabilities. It uses the same TLS material as the persistent
// transport, so a certificate problem surfaces here rather than mid-session.
func FetchServerInfo(ctx context.Context, uri *url.URL, cfg *Config, options ...Option) (*ServerInfo, error) {
	var info ServerInfo
	if err := SendJSONRequest(ctx, uri, "serverInfo", struct{}{}, &info, cfg, options...); err != nil {
		return nil, err
	}
	return &info, nil
}

// Heartbeat probes the host's HTTP control endpoint for liveness.
func Heartbeat(ctx context.Context, uri *url.URL, cfg *Config, options ...Option) error {
	var ok bool
	return SendJSONRequest(ctx, uri, "heartbeat", struct{}{}, &ok, cfg, options...)
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	// Drain any remaining data to allow connection reuse
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// isRetryableError checks if an error is transient and worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// EOF errors are often transient connection issues
	if errors.Is(err, io.EOF) || strings.Contains(errStr, "EOF") {
		return true
	}
	// Connection reset/refused are also transient
	if strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") {
		return true
	}
	return false
}

// SendJSONRequest issues one JSON-RPC 2.0 call over HTTP(S), retrying
// transient transport errors with exponential backoff. This path is
// independent of the persistent connection; it exists for the
// pre-connection handshake and liveness probes.
func SendJSONRequest(
	ctx context.Context,
	uri *url.URL,
	method string,
	params interface{},
	reply interface{},
	cfg *Config,
	options ...Option,
) error {
	cfg.Logger.Debug().Str("method", method).Str("uri", uri.String()).Msg("sending JSON request")
	requestBodyBytes, err := rpc.EncodeClientRequest(method, params)
	if err != nil {
		return fmt.Errorf("failed to encode client params: %w", err)
	}

	ops := NewOptions(options)
	uri.RawQuery = ops.queryParams.Encode()

	client, err := cfg.httpClient()
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 500ms, 1s, 2s
			waitTime := retryBaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
			}
		}

		// Create fresh request for each attempt (body buffer is consumed)
		request, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			uri.String(),
			bytes.NewBuffer(requestBodyBytes),
		)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		request.Header = ops.headers
		request.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(request)
		if err != nil {
			lastErr = err
			cfg.Logger.Warn().Err(err).Int("attempt", attempt+1).
				Bool("retryable", isRetryableError(err)).Msg("request attempt failed")
			if isRetryableError(err) {
				continue // Retry on transient errors
			}
			return fmt.Errorf("failed to issue request: %w", err)
		}

		// Return an error for any non successful status code
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			CleanlyCloseBody(resp.Body)
			return fmt.Errorf("received status code: %d", resp.StatusCode)
		}

		if err := rpc.DecodeClientResponse(resp.Body, reply); err != nil {
			CleanlyCloseBody(resp.Body)
			return fmt.Errorf("failed to decode client response: %w", err)
		}
		CleanlyCloseBody(resp.Body)
		return nil
	}

	return fmt.Errorf("failed to issue request after %d retries: %w", maxRetries, lastErr)
}
