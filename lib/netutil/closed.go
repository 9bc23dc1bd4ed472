// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies connection errors for the bridge channel.
package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsExpectedCloseError reports whether err is a normal connection
// termination: EOF, a closed connection or pipe, a broken pipe, or a
// connection reset. One bridge process exiting produces one of these on
// the other side's in-flight read or write.
//
// A channel that ends with one of these shuts down quietly instead of
// reporting a failure.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
