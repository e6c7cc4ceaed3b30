//go:build grpc

// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

func init() {
	// Register gRPC transport when build tag is enabled
	registerTransport(TransportGRPC, dialGRPC)
}

// rawCodec moves frames through gRPC untouched; envelope encoding is the
// client Codec's job.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("raw codec: expected []byte, got %T", v)
	}
	return b, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	p, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("raw codec: expected *[]byte, got %T", v)
	}
	*p = data
	return nil
}

func (rawCodec) Name() string { return "nuclide-raw" }

var channelStreamDesc = &grpc.StreamDesc{
	StreamName:    "Channel",
	ClientStreams: true,
	ServerStreams: true,
}

const channelMethod = "/nuclide.Channel/Open"

func dialGRPC(ctx context.Context, addr string, cfg *Config) (Transport, error) {
	tlsCfg, err := cfg.tlsConfig()
	if err != nil {
		return nil, err
	}
	creds := insecure.NewCredentials()
	if tlsCfg != nil {
		creds = credentials.NewTLS(tlsCfg)
	}

	conn, err := grpc.DialContext(ctx, addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}

	stream, err := conn.NewStream(context.Background(), channelStreamDesc, channelMethod)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("grpc open channel: %w", err)
	}

	return &grpcTransport{conn: conn, stream: stream}, nil
}

// grpcTransport carries frames over one bidi gRPC stream.
type grpcTransport struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
}

func (t *grpcTransport) Send(ctx context.Context, data []byte) error {
	return t.stream.SendMsg(data)
}

func (t *grpcTransport) Recv(ctx context.Context) ([]byte, error) {
	var data []byte
	if err := t.stream.RecvMsg(&data); err != nil {
		return nil, err
	}
	return data, nil
}

func (t *grpcTransport) Close() error {
	_ = t.stream.CloseSend()
	return t.conn.Close()
}
