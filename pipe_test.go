// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// pipeTransport is an in-memory Transport for tests. Frames the client
// sends land on out; frames pushed on in are delivered to the read loop.
type pipeTransport struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newPipeTransport() *pipeTransport {
	return &pipeTransport{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (t *pipeTransport) Send(ctx context.Context, data []byte) error {
	select {
	case <-t.closed:
		return ErrClosed
	case t.out <- data:
		return nil
	}
}

func (t *pipeTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case <-t.closed:
		return nil, ErrClosed
	case data := <-t.in:
		return data, nil
	}
}

func (t *pipeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

// push marshals v and delivers it to the client's read loop.
func (t *pipeTransport) push(tb testing.TB, v any) {
	tb.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		tb.Fatalf("marshal frame: %v", err)
	}
	t.in <- data
}

// pushRaw delivers bytes as-is, for malformed-input tests.
func (t *pipeTransport) pushRaw(data []byte) {
	t.in <- data
}

// sentRequest is the decoded form of an outbound frame.
type sentRequest struct {
	Channel        string            `json:"channel"`
	ServiceName    string            `json:"serviceName"`
	MethodName     string            `json:"methodName"`
	MethodArgs     []json.RawMessage `json:"methodArgs"`
	ServiceOptions map[string]any    `json:"serviceOptions"`
	RequestID      uint64            `json:"requestId"`
}

// stringArg decodes the i'th positional argument as a string.
func (r *sentRequest) stringArg(tb testing.TB, i int) string {
	tb.Helper()
	var s string
	if err := json.Unmarshal(r.MethodArgs[i], &s); err != nil {
		tb.Fatalf("arg %d: %v", i, err)
	}
	return s
}

// nextRequest waits for the next outbound frame and decodes it.
func (t *pipeTransport) nextRequest(tb testing.TB) *sentRequest {
	tb.Helper()
	select {
	case data := <-t.out:
		var req sentRequest
		if err := json.Unmarshal(data, &req); err != nil {
			tb.Fatalf("decode outbound frame: %v", err)
		}
		return &req
	case <-time.After(2 * time.Second):
		tb.Fatalf("no outbound frame within 2s")
		return nil
	}
}

// noRequest asserts that nothing is sent for the given window.
func (t *pipeTransport) noRequest(tb testing.TB, window time.Duration) {
	tb.Helper()
	select {
	case data := <-t.out:
		tb.Fatalf("unexpected outbound frame: %s", data)
	case <-time.After(window):
	}
}

// respond settles a request with a result payload.
func (t *pipeTransport) respond(tb testing.TB, id uint64, result any) {
	tb.Helper()
	t.push(tb, map[string]any{
		"channel":   ChannelRPC,
		"requestId": id,
		"result":    result,
	})
}

// respondError settles a request with an error payload.
func (t *pipeTransport) respondError(tb testing.TB, id uint64, errPayload any) {
	tb.Helper()
	t.push(tb, map[string]any{
		"channel":   ChannelRPC,
		"requestId": id,
		"error":     errPayload,
	})
}

func newTestClient(t *testing.T, opts ...DialOption) (*Client, *pipeTransport) {
	t.Helper()
	tr := newPipeTransport()
	// A no-op logger: background disposal goroutines may outlive the test,
	// and a testing.T writer would panic on late writes.
	opts = append([]DialOption{
		WithDefaultTimeout(2 * time.Second),
		WithLogger(zerolog.Nop()),
	}, opts...)
	c := NewClient(tr, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, tr
}

type callOutcome struct {
	result json.RawMessage
	err    error
}

// goCall issues a Call on its own goroutine so the test can play server.
func goCall(c *Client, service, method string, args []any, opts map[string]any, timeout time.Duration) <-chan callOutcome {
	ch := make(chan callOutcome, 1)
	go func() {
		result, err := c.Call(context.Background(), service, method, args, opts, timeout)
		ch <- callOutcome{result: result, err: err}
	}()
	return ch
}

func waitOutcome(tb testing.TB, ch <-chan callOutcome) callOutcome {
	tb.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(5 * time.Second):
		tb.Fatalf("call did not settle within 5s")
		return callOutcome{}
	}
}
