// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"context"
	"encoding/json"
	"sync/atomic"
)

// Key-space prefixes. Raw-channel topics live on the bus; event-broadcast
// keys are local to the client's observer table. The prefixes keep them
// disjoint even if a future consumer sees both.
const (
	eventTopicPrefix   = "event:"
	channelTopicPrefix = "channel:"
)

func channelTopic(name string) string { return channelTopicPrefix + name }

// readLoop pulls frames off the transport for the lifetime of the
// connection. It is the only goroutine that mutates dispatch state from the
// inbound side, so envelopes are handled strictly in arrival order. A
// transport failure closes the connection, which rejects everything still
// pending.
func (c *Client) readLoop() {
	defer close(c.readDone)
	ctx := context.Background()
	for {
		data, err := c.transport.Recv(ctx)
		if err != nil {
			if c.State() != StateClosed {
				c.log.Warn().Err(err).Msg("transport failure, closing connection")
				_ = c.Close()
			}
			return
		}
		c.route(data)
	}
}

// route decodes one inbound envelope and dispatches it to exactly one
// destination. Malformed input is logged and dropped; nothing on this path
// may crash the loop.
func (c *Client) route(data []byte) {
	var env envelope
	if err := c.codec.Decode(data, &env); err != nil {
		c.log.Error().Err(err).Str("frame", frameExcerpt(data)).Msg("malformed message dropped")
		return
	}

	switch env.Channel {
	case ChannelRPC:
		if env.RequestID == nil {
			c.log.Error().Str("frame", frameExcerpt(data)).Msg("rpc response without requestId dropped")
			return
		}
		c.settleResponse(&env)
	case ChannelEventbus:
		if env.EventName == "" {
			c.log.Error().Str("frame", frameExcerpt(data)).Msg("broadcast without eventName dropped")
			return
		}
		// Broadcast dispatch goes through the client-owned observer
		// lists directly: delivery must not run under the bus lock, and
		// absence of a listener is a silent no-op.
		c.events.deliver(env.EventName, env.Args)
	case ChannelStream:
		if env.EmitterID == nil {
			c.log.Error().Str("frame", frameExcerpt(data)).Msg("stream event without emitterId dropped")
			return
		}
		c.dispatchStream(&env)
	default:
		// Generic fallback: re-broadcast the whole frame for subscribers
		// registered by raw channel name.
		c.bus.Publish(channelTopic(env.Channel), json.RawMessage(data))
	}
}

// settleResponse matches a response to its pending call. No pending entry is
// a normal race (already timed out, or never issued here), not a fault.
func (c *Client) settleResponse(env *envelope) {
	id := *env.RequestID
	p := c.takePending(id)
	if p == nil {
		c.log.Debug().Uint64("requestId", id).Msg("response for unknown request dropped")
		return
	}
	if env.hasError() {
		p.ch <- callResult{err: &RemoteError{Service: p.service, Method: p.method, Payload: env.Error}}
		return
	}
	p.ch <- callResult{result: env.Result}
}

// dispatchStream delivers a stream event to its emitter. The first terminal
// event deregisters the id before delivery, so anything arriving for that id
// afterwards takes the unknown-emitter path.
func (c *Client) dispatchStream(env *envelope) {
	id := *env.EmitterID

	c.emu.Lock()
	em := c.emitters[id]
	if em != nil && em.isTerminal(env.Type) {
		delete(c.emitters, id)
	}
	c.emu.Unlock()

	if em == nil {
		c.log.Error().Int64("emitterId", id).Str("type", env.Type).Msg("event for unknown emitter dropped")
		return
	}
	em.emit(env.Type, env.Args)
}

// ChannelSubscription is a handle on a raw-channel fallback subscription.
type ChannelSubscription struct {
	c        *Client
	channel  string
	token    int
	disposed atomic.Bool
}

// OnChannel registers a handler for every frame whose channel discriminator
// matches none of the structured encodings. The handler receives the whole
// undecoded frame. This path exists for subsystems that speak their own
// channel format.
//
// OnChannel and Dispose may be called from inside a delivery callback, with
// one restriction: the very first registration ever for a channel attaches
// that channel's bus relay and must not happen from inside a callback.
// Re-registering a channel the connection has seen before is safe anywhere.
func (c *Client) OnChannel(channel string, fn func(raw json.RawMessage)) (*ChannelSubscription, error) {
	token, err := c.channels.add(channel, fn)
	if err != nil {
		return nil, err
	}
	return &ChannelSubscription{c: c, channel: channel, token: token}, nil
}

// Dispose removes exactly this handler. Idempotent.
func (s *ChannelSubscription) Dispose() {
	if s.disposed.Swap(true) {
		return
	}
	s.c.channels.remove(s.channel, s.token)
}

// frameExcerpt bounds how much of a bad frame ends up in the log.
func frameExcerpt(data []byte) string {
	const max = 256
	if len(data) > max {
		return string(data[:max]) + "…"
	}
	return string(data)
}
