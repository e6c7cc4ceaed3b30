// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package nuclide is the client-side remote event bus and RPC multiplexer
// for talking to a single remote service host over one persistent
// connection. It issues correlated request/response calls with timeouts,
// maintains long-lived named event subscriptions, and consumes server-pushed
// object/stream events, all over one transport.
//
// # Transport Selection
//
// WebSocket is the default transport. Use build tags to enable alternatives:
//
//	go build              # WebSocket only (default)
//	go build -tags grpc   # Enable gRPC stream transport
//
// # Usage
//
//	client, err := nuclide.Dial(ctx, "wss://host:9090/channel",
//	    nuclide.WithTLSMaterial(ca, cert, key))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Correlated RPC call
//	result, err := client.Call(ctx, "fileSystem", "readFile",
//	    []any{"/etc/hosts"}, nil, 0)
//
//	// Named event subscription
//	sub, err := client.Subscribe("fileWatcher/onChange", onChange, nil)
//	defer sub.Dispose()
//
//	// Server-pushed stream
//	stream, err := client.ConsumeStream(ctx, 42)
//	stream.On("data", onData)
//
// Before opening the persistent connection, FetchServerInfo and Heartbeat
// probe the host's HTTP control endpoint with the same TLS material.
//
// # Architecture
//
// The package separates concerns:
//
//   - client.go: Client (the connection) and the RPC call engine
//   - router.go: inbound envelope dispatch (responses, broadcasts, streams,
//     generic channels)
//   - subscription.go: named event subscriptions with remote
//     subscribe/unsubscribe
//   - bus.go: keyed observer fan-out backing event and channel dispatch
//   - emitter.go: per-id emitters for server-pushed streams/objects
//   - envelope.go: wire envelope and channel discriminators
//   - transport.go: Transport interface and registry
//   - ws.go: WebSocket transport (default)
//   - dial_grpc.go: gRPC stream transport (requires -tags grpc)
//   - json.go: HTTP JSON-RPC handshake/heartbeat helper
//   - delegate.go: the consumed marshalling collaborator interface
//
// A dropped connection is surfaced as a failure: every pending call settles
// with a connection-closed error and the Client is permanently unusable.
// Obtain a new one; this package does not reconnect.
package nuclide
