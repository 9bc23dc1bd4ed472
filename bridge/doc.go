// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge connects a native host application to a plugin running
// in a separate plugin host process.
//
// [Host] runs in the plugin host process. It loads the plugin through a
// [loader.Loader] and serves one [proxy.Server] per connection: either
// the socket inherited from the native side ([Host.ServeInherited]) or
// every connection accepted on a listening socket ([Host.Start]), which
// lets several native plugin instances share one host process.
//
// [Plugin] is the native end. [Launch] starts a plugin host binary with
// one end of a socketpair as descriptor 3 and connects to it; [Dial]
// connects to a host that is already listening; [Connect] wraps any
// established stream. All three return once the plugin host process has
// completed the configuration handshake.
package bridge
