// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"context"
	"io"
	"sync"
)

// Transport is the connection-oriented byte channel the client multiplexes
// over. Frames must be delivered whole and in order. Implementations must be
// safe for one concurrent sender plus one concurrent receiver.
//
// Reconnection, retries, and backpressure are the transport's concern (or
// nobody's): the client surfaces a dropped connection as a failure and never
// silently recovers it.
type Transport interface {
	io.Closer
	Send(ctx context.Context, data []byte) error
	Recv(ctx context.Context) ([]byte, error)
}

// Transport types
const (
	TransportWS   = "ws"   // WebSocket, default
	TransportGRPC = "grpc" // gRPC bidi stream, requires build tag
)

// DefaultTransport is the default transport type (WebSocket)
const DefaultTransport = TransportWS

type dialFunc func(ctx context.Context, addr string, cfg *Config) (Transport, error)

var (
	transportsMu sync.RWMutex
	transports   = map[string]dialFunc{
		TransportWS: dialWS,
	}
)

// registerTransport registers a new transport (used by build tags)
func registerTransport(name string, dial dialFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = dial
}

// AvailableTransports returns list of available transport types
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	return result
}

// HasTransport checks if a transport is available
func HasTransport(name string) bool {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	_, ok := transports[name]
	return ok
}
