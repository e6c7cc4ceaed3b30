// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// StreamEventNames are the event types a server-side stream pushes.
var StreamEventNames = []string{"data", "error", "close", "end"}

// streamTerminalEvents marks which of those end the stream.
var streamTerminalEvents = []string{"end"}

// Emitter distributes the events of one server-side stream/object id to its
// registered listeners. It is an owned observer-list, not a process-wide
// event bus: listeners attach per event name and detach by token.
type Emitter struct {
	mu        sync.Mutex
	listeners map[string]map[int]func(args []json.RawMessage)
	nextToken int
	terminal  map[string]bool
}

func newEmitter(terminalEventNames []string) *Emitter {
	terminal := make(map[string]bool, len(terminalEventNames))
	for _, name := range terminalEventNames {
		terminal[name] = true
	}
	return &Emitter{
		listeners: make(map[string]map[int]func(args []json.RawMessage)),
		terminal:  terminal,
	}
}

// Listener is a token for one registered handler.
type Listener struct {
	e     *Emitter
	event string
	token int
}

// On registers fn for the named event and returns its removal token.
func (e *Emitter) On(event string, fn func(args []json.RawMessage)) Listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextToken++
	m := e.listeners[event]
	if m == nil {
		m = make(map[int]func(args []json.RawMessage))
		e.listeners[event] = m
	}
	m[e.nextToken] = fn
	return Listener{e: e, event: event, token: e.nextToken}
}

// Dispose removes exactly the handler this token was issued for. Removing a
// handler twice is a no-op.
func (l Listener) Dispose() {
	if l.e == nil {
		return
	}
	l.e.mu.Lock()
	defer l.e.mu.Unlock()
	if m := l.e.listeners[l.event]; m != nil {
		delete(m, l.token)
	}
}

func (e *Emitter) isTerminal(event string) bool {
	return e.terminal[event]
}

// emit delivers args to every listener of event, in registration order.
func (e *Emitter) emit(event string, args []json.RawMessage) {
	e.mu.Lock()
	m := e.listeners[event]
	fns := make([]func(args []json.RawMessage), 0, len(m))
	tokens := make([]int, 0, len(m))
	for token := range m {
		tokens = append(tokens, token)
	}
	sort.Ints(tokens)
	for _, token := range tokens {
		fns = append(fns, m[token])
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(args)
	}
}

// ConsumeEmitter begins consuming the events of a server-side object. It
// registers a fresh Emitter under emitterID, then issues the eventbus
// subscribe call advertising which event types the server should forward.
// The first occurrence of any name in terminalEventNames deregisters the id;
// the Emitter object itself stays usable by whoever still holds it, but the
// id can never be looked up again, so server objects that outlive client
// interest cannot grow the table.
func (c *Client) ConsumeEmitter(ctx context.Context, emitterID int64, eventNames, terminalEventNames []string) (*Emitter, error) {
	em := newEmitter(terminalEventNames)

	c.emu.Lock()
	if _, ok := c.emitters[emitterID]; ok {
		c.emu.Unlock()
		return nil, fmt.Errorf("nuclide: emitter %d already consumed", emitterID)
	}
	c.emitters[emitterID] = em
	c.emu.Unlock()

	_, err := c.Call(ctx, ServiceEventbus, "subscribe", []any{emitterID, eventNames}, nil, 0)
	if err != nil {
		c.removeEmitter(emitterID)
		return nil, fmt.Errorf("subscribe emitter %d: %w", emitterID, err)
	}
	return em, nil
}

// ConsumeStream is ConsumeEmitter specialized to node-style streams:
// data/error/close/end events, with end terminal.
func (c *Client) ConsumeStream(ctx context.Context, streamID int64) (*Emitter, error) {
	return c.ConsumeEmitter(ctx, streamID, StreamEventNames, streamTerminalEvents)
}

// removeEmitter deregisters id. Idempotent; delivery to an already-removed
// id takes the unknown-emitter path in the router.
func (c *Client) removeEmitter(id int64) {
	c.emu.Lock()
	delete(c.emitters, id)
	c.emu.Unlock()
}
