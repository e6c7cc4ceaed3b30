// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"bytes"
	"encoding/json"
)

// Channel discriminators. Every frame carries a channel field selecting one
// of the four dispatch paths; unknown channels fall through to the generic
// channel bus.
const (
	ChannelRPC      = "service_framework/rpc"
	ChannelEventbus = "eventbus"
	ChannelStream   = "stream"
)

// Well-known pseudo-services addressed over the RPC channel.
const (
	ServiceFramework = "serviceFramework"
	ServiceEventbus  = "eventbus"
)

// envelope is the decoded form of one inbound frame. Exactly one group of
// optional fields is populated depending on the channel discriminator:
//
//	rpc-response:    requestId, error?, result?
//	event-broadcast: eventName, args
//	stream-event:    emitterId, type, args
//
// Envelopes are ephemeral: consumed once by the router, never retained.
type envelope struct {
	Channel   string            `json:"channel"`
	RequestID *uint64           `json:"requestId,omitempty"`
	Error     json.RawMessage   `json:"error,omitempty"`
	Result    json.RawMessage   `json:"result,omitempty"`
	EventName string            `json:"eventName,omitempty"`
	EmitterID *int64            `json:"emitterId,omitempty"`
	Type      string            `json:"type,omitempty"`
	Args      []json.RawMessage `json:"args,omitempty"`
}

var jsonNull = []byte("null")

// hasError reports whether the server attached an explicit error payload.
func (e *envelope) hasError() bool {
	return len(e.Error) != 0 && !bytes.Equal(e.Error, jsonNull)
}

// request is the outbound RPC frame.
type request struct {
	Channel        string         `json:"channel"`
	ServiceName    string         `json:"serviceName"`
	MethodName     string         `json:"methodName"`
	MethodArgs     []any          `json:"methodArgs"`
	ServiceOptions map[string]any `json:"serviceOptions"`
	RequestID      uint64         `json:"requestId"`
}
