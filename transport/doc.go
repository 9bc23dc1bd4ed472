// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries bridge messages between the native host
// process and the plugin host process.
//
// A [Channel] wraps one duplex byte stream, normally a Unix socket or
// one end of a socketpair. Both ends may issue requests at any time.
// Every frame carries a correlation id, so responses are matched to
// the call that is waiting for them regardless of arrival order:
//
//	[1 byte type] [1 byte flags] [2 byte kind] [8 byte call id] [8 byte length] [payload]
//
// Integers are big-endian. The payload is the CBOR encoding of the
// message named by kind (see lib/protocol).
//
// One goroutine reads frames. Responses are handed to the blocked
// caller; each inbound request runs in its own goroutine. This is what
// makes callbacks reentrant: while the host side is blocked in
// IAudioProcessor::process, the plugin side may call
// IComponentHandler::performEdit back across the same channel, and the
// host side answers it while the outer call is still in flight. Nested
// calls may go as deep as the plugin likes.
//
// Failure handling is all or nothing. A transport error (EOF, reset,
// write failure) fails every pending call and every later one with an
// error wrapping [ErrClosed]. A [ProtocolError] (malformed frame,
// unknown kind, a response of the wrong kind, an unknown call id, or a
// handler that cannot serve a request) also closes the channel, since
// the two processes no longer agree on the state of the conversation.
// There is no per-call timeout: a plugin that takes minutes to load a
// sample library in setActive is not an error.
package transport
