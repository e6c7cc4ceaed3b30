// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the connection lifecycle state. Connecting exists only for the
// duration of Dial; a Client is Open from construction until Close, and
// Closed is terminal.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client multiplexes RPC calls, named event subscriptions, and server-pushed
// stream events over one Transport. Each Client owns its own correlation and
// emitter tables, so a process may hold any number of independent
// connections.
type Client struct {
	transport Transport
	codec     Codec
	cfg       *Config
	log       zerolog.Logger

	// clientID identifies this connection in subscribeEvent calls.
	clientID string

	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]*pendingRequest

	emu      sync.Mutex
	emitters map[int64]*Emitter

	bus      evbus.Bus
	events   *fanout[[]json.RawMessage]
	channels *fanout[json.RawMessage]

	state    atomic.Int32
	readDone chan struct{}
}

// pendingRequest is a one-shot settlement slot for an in-flight call.
// Whichever side removes it from the table delivers the result; the entry
// exists at most once per id and is destroyed exactly once.
type pendingRequest struct {
	service string
	method  string
	ch      chan callResult
}

type callResult struct {
	result json.RawMessage
	err    error
}

func newClient(transport Transport, cfg *Config) *Client {
	bus := evbus.New()
	c := &Client{
		transport: transport,
		codec:     cfg.codec,
		cfg:       cfg,
		log:       cfg.Logger,
		clientID:  uuid.NewString(),
		pending:   make(map[uint64]*pendingRequest),
		emitters:  make(map[int64]*Emitter),
		bus:       bus,
		events:    newFanout[[]json.RawMessage](nil, eventTopicPrefix),
		channels:  newFanout[json.RawMessage](bus, channelTopicPrefix),
		readDone:  make(chan struct{}),
	}
	c.state.Store(int32(StateOpen))
	go c.readLoop()
	return c
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// ClientID returns the identity this connection presents in subscribe calls.
func (c *Client) ClientID() string {
	return c.clientID
}

// Transport exposes the underlying transport to external collaborators such
// as the RemoteCallDelegate.
func (c *Client) Transport() Transport {
	return c.transport
}

// Call issues a correlated RPC call and waits for its settlement: the
// matching response, the timeout (zero means Config.DefaultTimeout), or
// context cancellation, whichever comes first. Settlement is exactly-once;
// a response arriving after the timeout is logged at debug level and has no
// further effect.
//
// The result payload is returned undecoded; marshalling of values is the
// RemoteCallDelegate's concern.
func (c *Client) Call(ctx context.Context, service, method string, args []any, opts map[string]any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.cfg.DefaultTimeout
	}
	if args == nil {
		args = []any{}
	}
	if opts == nil {
		opts = map[string]any{}
	}

	id := c.nextID.Add(1)
	p := &pendingRequest{service: service, method: method, ch: make(chan callResult, 1)}

	c.mu.Lock()
	if c.State() == StateClosed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = p
	c.mu.Unlock()

	data, err := c.codec.Encode(&request{
		Channel:        ChannelRPC,
		ServiceName:    service,
		MethodName:     method,
		MethodArgs:     args,
		ServiceOptions: opts,
		RequestID:      id,
	})
	if err != nil {
		c.takePending(id)
		return nil, fmt.Errorf("encode request: %w", err)
	}

	if err := c.transport.Send(ctx, data); err != nil {
		c.takePending(id)
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-p.ch:
		return r.result, r.err
	case <-timer.C:
		if c.takePending(id) != nil {
			return nil, &TimeoutError{Service: service, Method: method, Elapsed: time.Since(start)}
		}
		// The response (or close) removed the entry just as the timer
		// fired; its result is already in flight on the channel.
		r := <-p.ch
		return r.result, r.err
	case <-ctx.Done():
		if c.takePending(id) != nil {
			return nil, ctx.Err()
		}
		r := <-p.ch
		return r.result, r.err
	}
}

// CallOneWay sends a request without registering for its response. It is
// used for fire-and-forget calls where the caller does not care about the
// outcome beyond the send itself.
func (c *Client) CallOneWay(ctx context.Context, service, method string, args []any, opts map[string]any) error {
	if c.State() == StateClosed {
		return ErrClosed
	}
	if args == nil {
		args = []any{}
	}
	if opts == nil {
		opts = map[string]any{}
	}

	data, err := c.codec.Encode(&request{
		Channel:        ChannelRPC,
		ServiceName:    service,
		MethodName:     method,
		MethodArgs:     args,
		ServiceOptions: opts,
		RequestID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if err := c.transport.Send(ctx, data); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// takePending removes and returns the pending entry for id, or nil if it was
// already settled. Removal under the lock is what makes settlement
// exactly-once: only the goroutine that took the entry may deliver on it.
func (c *Client) takePending(id uint64) *pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return p
}

// Close tears the connection down. It is idempotent. Every call still
// pending at close time settles with ErrClosed rather than being left to
// time out, and all future calls fail immediately without touching the
// transport.
func (c *Client) Close() error {
	if !c.state.CompareAndSwap(int32(StateOpen), int32(StateClosed)) {
		return nil
	}

	c.mu.Lock()
	for id, p := range c.pending {
		delete(c.pending, id)
		p.ch <- callResult{err: ErrClosed}
	}
	c.mu.Unlock()

	c.emu.Lock()
	c.emitters = make(map[int64]*Emitter)
	c.emu.Unlock()

	return c.transport.Close()
}
