// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"context"
	"encoding/json"
)

// IDGenerator hands out correlation ids. Ids from one Client are unique for
// the connection's lifetime and are shared between the Client's own calls
// and any delegate-driven traffic.
type IDGenerator func() uint64

// RemoteCallDelegate is the external collaborator that marshals call
// arguments and results and manages remote-object handles. The core does
// not implement marshalling; its responsibility ends at handing the
// delegate a correlation-id generator and the Transport.
type RemoteCallDelegate interface {
	CallRemoteFunction(ctx context.Context, name string, args ...any) (any, error)
	CreateRemoteObject(ctx context.Context, typeName string, args ...any) (objectID int64, err error)
	CallRemoteMethod(ctx context.Context, objectID int64, method string, args ...any) (any, error)
	DisposeRemoteObject(ctx context.Context, objectID int64) error

	Marshal(v any) (json.RawMessage, error)
	Unmarshal(data json.RawMessage, v any) error
	RegisterType(descriptor TypeDescriptor)
}

// TypeDescriptor teaches a delegate how to move one named type across the
// wire. Its encoding internals are out of scope here.
type TypeDescriptor struct {
	Name      string
	Marshal   func(v any) (json.RawMessage, error)
	Unmarshal func(data json.RawMessage) (any, error)
}

// IDGenerator returns a generator drawing from this connection's correlation
// sequence, for wiring into a RemoteCallDelegate.
func (c *Client) IDGenerator() IDGenerator {
	return func() uint64 { return c.nextID.Add(1) }
}
