// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// wsTransport carries frames over one WebSocket connection, the default
// transport. Text frames, one frame per envelope.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
}

// dialWS opens a WebSocket connection to addr (a ws:// or wss:// URL),
// applying the configured handshake timeout and TLS material.
func dialWS(ctx context.Context, addr string, cfg *Config) (Transport, error) {
	tlsCfg, err := cfg.tlsConfig()
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		TLSClientConfig:  tlsCfg,
	}

	conn, resp, err := dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	if resp != nil && resp.Body != nil {
		// Handshake response body carries nothing further.
		_ = resp.Body.Close()
	}

	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) Send(ctx context.Context, data []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Recv(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		if t.closed.Load() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("websocket read: %w", err)
	}
	return data, nil
}

func (t *wsTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	// Best-effort close frame so the server sees a clean shutdown.
	deadline := time.Now().Add(time.Second)
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return t.conn.Close()
}
