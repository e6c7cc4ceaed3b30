// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func pushStreamEvent(t *testing.T, tr *pipeTransport, emitterID int64, typ string, args ...any) {
	t.Helper()
	tr.push(t, map[string]any{
		"channel":   ChannelStream,
		"emitterId": emitterID,
		"type":      typ,
		"args":      args,
	})
}

// consumeStream drives ConsumeStream against the fake server and returns
// the emitter once the subscribe call has been acknowledged.
func consumeStream(t *testing.T, c *Client, tr *pipeTransport, streamID int64) *Emitter {
	t.Helper()

	type result struct {
		em  *Emitter
		err error
	}
	done := make(chan result, 1)
	go func() {
		em, err := c.ConsumeStream(context.Background(), streamID)
		done <- result{em, err}
	}()

	req := tr.nextRequest(t)
	require.Equal(t, ServiceEventbus, req.ServiceName)
	require.Equal(t, "subscribe", req.MethodName)

	var gotID int64
	require.NoError(t, json.Unmarshal(req.MethodArgs[0], &gotID))
	require.Equal(t, streamID, gotID)

	var names []string
	require.NoError(t, json.Unmarshal(req.MethodArgs[1], &names))
	require.Equal(t, StreamEventNames, names)

	tr.respond(t, req.RequestID, true)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		return r.em
	case <-time.After(2 * time.Second):
		t.Fatal("ConsumeStream did not return")
		return nil
	}
}

func TestConsumeStreamLifecycle(t *testing.T) {
	c, tr := newTestClient(t)
	em := consumeStream(t, c, tr, 42)

	seq := make(chan string, 8)
	em.On("data", func(args []json.RawMessage) {
		var s string
		_ = json.Unmarshal(args[0], &s)
		seq <- "data:" + s
	})
	em.On("end", func([]json.RawMessage) { seq <- "end" })

	pushStreamEvent(t, tr, 42, "data", "chunk1")
	pushStreamEvent(t, tr, 42, "data", "chunk2")
	pushStreamEvent(t, tr, 42, "end")

	for _, want := range []string{"data:chunk1", "data:chunk2", "end"} {
		select {
		case got := <-seq:
			require.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("missing event %q", want)
		}
	}

	// After the terminal event the id is no longer resolvable: a stray
	// event is dropped, never delivered.
	pushStreamEvent(t, tr, 42, "data", "stray")
	select {
	case got := <-seq:
		t.Fatalf("event delivered after terminal: %q", got)
	case <-time.After(50 * time.Millisecond):
	}

	// The id can be consumed again once reclaimed.
	em2 := consumeStream(t, c, tr, 42)
	require.NotNil(t, em2)
}

func TestUnknownEmitterEventDropped(t *testing.T) {
	c, tr := newTestClient(t)

	pushStreamEvent(t, tr, 7, "data", "nobody home")

	// Dispatch survives and the connection keeps working.
	ch := goCall(c, "svc", "ping", nil, nil, 0)
	req := tr.nextRequest(t)
	tr.respond(t, req.RequestID, "pong")
	require.NoError(t, waitOutcome(t, ch).err)
}

func TestConsumeEmitterSubscribeFailureDeregisters(t *testing.T) {
	c, tr := newTestClient(t)

	done := make(chan error, 1)
	go func() {
		_, err := c.ConsumeEmitter(context.Background(), 9, []string{"tick"}, []string{"tick"})
		done <- err
	}()

	req := tr.nextRequest(t)
	tr.respondError(t, req.RequestID, "no such object")

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ConsumeEmitter did not return")
	}

	// The failed id was reclaimed: consuming it again is allowed.
	done2 := make(chan error, 1)
	go func() {
		_, err := c.ConsumeEmitter(context.Background(), 9, []string{"tick"}, []string{"tick"})
		done2 <- err
	}()
	req2 := tr.nextRequest(t)
	tr.respond(t, req2.RequestID, true)
	require.NoError(t, <-done2)
}

func TestConsumeEmitterDuplicateID(t *testing.T) {
	c, tr := newTestClient(t)
	consumeStream(t, c, tr, 5)

	_, err := c.ConsumeEmitter(context.Background(), 5, []string{"data"}, []string{"end"})
	require.Error(t, err)
	tr.noRequest(t, 50*time.Millisecond)
}

func TestEmitterListenerDispose(t *testing.T) {
	em := newEmitter([]string{"end"})

	var kept, removed int
	keep := em.On("data", func([]json.RawMessage) { kept++ })
	drop := em.On("data", func([]json.RawMessage) { removed++ })

	em.emit("data", nil)
	drop.Dispose()
	drop.Dispose() // second dispose is a no-op
	em.emit("data", nil)

	require.Equal(t, 2, kept)
	require.Equal(t, 1, removed)
	keep.Dispose()
	em.emit("data", nil)
	require.Equal(t, 2, kept)
}

func TestEmitterTerminalSet(t *testing.T) {
	em := newEmitter([]string{"end", "error"})
	require.True(t, em.isTerminal("end"))
	require.True(t, em.isTerminal("error"))
	require.False(t, em.isTerminal("data"))
}
