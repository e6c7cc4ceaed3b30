// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"sort"
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// fanout is an observer-list-per-key table with token-based removal. When a
// bus is attached, exactly one relay handler is registered on the bus per
// ever-used key and local handlers hang behind it; with a nil bus the table
// is purely local and delivery happens through deliver. The relay
// indirection matters: the bus identifies handlers by function pointer,
// which cannot tell two instances of the same closure apart, while tokens
// can.
//
// A key's relay stays subscribed for the fanout's lifetime. Tearing it down
// on last removal would race a concurrent re-add installing a second relay,
// and one frame would then reach the new handler twice; an idle relay
// delivering to an empty handler list is a no-op.
type fanout[T any] struct {
	bus    evbus.Bus // optional
	prefix string

	mu     sync.Mutex
	topics map[string]*fanoutTopic[T]
}

type fanoutTopic[T any] struct {
	handlers map[int]func(T)
	next     int
}

func newFanout[T any](bus evbus.Bus, prefix string) *fanout[T] {
	return &fanout[T]{
		bus:    bus,
		prefix: prefix,
		topics: make(map[string]*fanoutTopic[T]),
	}
}

// add registers fn under key and returns its removal token. The first
// handler ever seen for a key installs the key's relay on the bus; later
// registrations reuse it. The Subscribe call happens after f.mu is
// released: the bus holds its own lock while publishing into the relay,
// and the relay takes f.mu, so attaching under f.mu would invert that
// order.
func (f *fanout[T]) add(key string, fn func(T)) (int, error) {
	f.mu.Lock()
	var relay func(T)
	topic := f.topics[key]
	if topic == nil {
		topic = &fanoutTopic[T]{handlers: make(map[int]func(T))}
		relay = func(v T) { f.deliver(key, v) }
		f.topics[key] = topic
	}
	topic.next++
	token := topic.next
	topic.handlers[token] = fn
	f.mu.Unlock()

	if relay != nil && f.bus != nil {
		if err := f.bus.Subscribe(f.prefix+key, relay); err != nil {
			f.mu.Lock()
			delete(f.topics, key)
			f.mu.Unlock()
			return 0, err
		}
	}
	return token, nil
}

// remove detaches exactly the handler the token was issued for. Unknown
// tokens are no-ops. The key's relay is left in place; see the type
// comment.
func (f *fanout[T]) remove(key string, token int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if topic := f.topics[key]; topic != nil {
		delete(topic.handlers, token)
	}
}

// deliver invokes every handler attached under key, in registration order.
func (f *fanout[T]) deliver(key string, v T) {
	f.mu.Lock()
	var fns []func(T)
	if topic := f.topics[key]; topic != nil {
		tokens := make([]int, 0, len(topic.handlers))
		for token := range topic.handlers {
			tokens = append(tokens, token)
		}
		sort.Ints(tokens)
		fns = make([]func(T), 0, len(tokens))
		for _, token := range tokens {
			fns = append(fns, topic.handlers[token])
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
