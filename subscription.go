// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Subscription is a handle on one named-event subscription. Dispose stops
// local delivery synchronously and unwinds the remote side best-effort.
type Subscription struct {
	c       *Client
	key     string
	service string
	method  string
	token   int

	// settled closes once the subscribeEvent round trip finishes; subErr
	// holds its outcome. Unsubscribe must not be sent before then.
	settled chan struct{}
	subErr  error

	disposed atomic.Bool
}

// Subscribe binds callback to the remote event eventName ("service/method").
// The callback is registered locally right away and an asynchronous
// subscribeEvent call tells the server to start pushing; events flow as soon
// as that call completes. Repeated subscriptions to the same logical event
// collapse onto the same remote channel key, and every callback registered
// on a key receives every broadcast for it independently.
func (c *Client) Subscribe(eventName string, callback func(args []json.RawMessage), opts map[string]any) (*Subscription, error) {
	service, method, ok := strings.Cut(eventName, "/")
	if !ok || service == "" || method == "" {
		return nil, fmt.Errorf("nuclide: invalid event name %q, want \"service/method\"", eventName)
	}

	key := remoteEventKey(service, method, opts)

	token, err := c.events.add(key, callback)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		c:       c,
		key:     key,
		service: service,
		method:  method,
		token:   token,
		settled: make(chan struct{}),
	}

	go func() {
		defer close(sub.settled)
		_, err := c.Call(context.Background(), ServiceFramework, "subscribeEvent",
			[]any{c.clientID, service, method}, opts, 0)
		sub.subErr = err
		if err != nil {
			c.log.Warn().Err(err).Str("event", eventName).Msg("subscribeEvent failed")
		}
	}()

	return sub, nil
}

// Wait blocks until the underlying subscribeEvent call settles and returns
// its outcome. Delivery may begin before Wait returns.
func (s *Subscription) Wait(ctx context.Context) error {
	select {
	case <-s.settled:
		return s.subErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispose removes the local callback immediately and issues a best-effort
// unsubscribeEvent once the original subscribe call has settled, so the
// server never sees the pair out of order. Unsubscribe failure is logged,
// never surfaced: local cleanup has already succeeded. Idempotent.
func (s *Subscription) Dispose() {
	if s.disposed.Swap(true) {
		return
	}
	s.c.events.remove(s.key, s.token)

	go func() {
		<-s.settled
		if s.subErr != nil {
			// The server never acknowledged the subscription; there is
			// nothing remote to unwind.
			return
		}
		_, err := s.c.Call(context.Background(), ServiceFramework, "unsubscribeEvent",
			[]any{s.c.clientID, s.service, s.method}, nil, 0)
		if err != nil {
			s.c.log.Warn().Err(err).Str("key", s.key).Msg("unsubscribeEvent failed")
		}
	}()
}

// remoteEventKey derives the remote channel key for (service, method, opts).
// The derivation is deterministic: option keys are rendered in sorted order,
// so equivalent subscriptions always share a key.
func remoteEventKey(service, method string, opts map[string]any) string {
	if len(opts) == 0 {
		return service + "/" + method
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(service)
	b.WriteByte('/')
	b.WriteString(method)
	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		fmt.Fprintf(&b, "%s=%v", k, opts[k])
	}
	return b.String()
}
