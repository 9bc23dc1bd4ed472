// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package watchdog ends a plugin host process that nobody needs any
// more.
//
// A host started for one native side normally exits when its socket
// closes. That does not happen when the native side is killed while
// the descriptor is shared with another process, or when the host is
// listening for several native sides. [Watch] polls the native side's
// process and reports when it is gone. [Idle] shuts a listening host
// down after it has served no sessions for a while.
//
// Both take a [clock.Clock] so tests can drive them deterministically.
package watchdog
