// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"

	"github.com/sarvex/yabridge/lib/protocol"
)

// ErrClosed is wrapped by every error returned from a Call on a channel
// that has shut down.
var ErrClosed = errors.New("channel closed")

// ProtocolError reports a violation of the frame protocol. It always
// closes the channel.
type ProtocolError struct {
	// Reason is a short description, e.g. "unknown call id".
	Reason string
	Kind   protocol.Kind
	CallID uint64
	Err    error
}

func (e *ProtocolError) Error() string {
	message := fmt.Sprintf("protocol error: %s (kind %s, call %d)", e.Reason, e.Kind, e.CallID)
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	return message
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsProtocolError reports whether err is or wraps a *ProtocolError.
func IsProtocolError(err error) bool {
	var protocolError *ProtocolError
	return errors.As(err, &protocolError)
}
