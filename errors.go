// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrClosed is returned for any call issued on a closed connection,
	// and is the settlement error for calls still pending when the
	// connection closes.
	ErrClosed = errors.New("nuclide: connection closed")

	// ErrTransport wraps transport-level send/receive failures.
	ErrTransport = errors.New("nuclide: transport error")
)

// TimeoutError is returned when an RPC call receives no response within
// its configured window. It is always recoverable by the caller and never
// fatal to the connection.
type TimeoutError struct {
	Service string
	Method  string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("nuclide: call %s.%s timed out after %s", e.Service, e.Method, e.Elapsed)
}

// Timeout reports true so callers can detect the condition through
// net.Error-style interface checks.
func (e *TimeoutError) Timeout() bool { return true }

// RemoteError carries an explicit error payload returned by the server for
// a request. The payload is propagated verbatim.
type RemoteError struct {
	Service string
	Method  string
	Payload json.RawMessage
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("nuclide: remote error calling %s.%s: %s", e.Service, e.Method, e.Payload)
}
