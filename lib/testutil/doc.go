// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for yabridge packages.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets, which have a 108-byte path limit.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. Bridge
// tests use them wherever a goroutine on the other end of a channel
// must make progress.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no yabridge-internal dependencies.
package testutil
