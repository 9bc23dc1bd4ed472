// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// yabridge-host is the plugin host process. It loads one plugin and
// serves bridge sessions for it.
//
// In inherited mode (--fd) the native side has started the process with
// one end of a socketpair and the host serves exactly that session,
// exiting when it ends. In listening mode (--socket) the host binds a
// unix socket and serves every connection as its own session, sharing
// the loaded plugin between them, until it receives SIGINT or SIGTERM
// or, with --idle-timeout, until it has served nothing for that long.
// --watch-pid additionally stops the host once the given process, the
// native side, has exited.
//
// Call diagnostics are written through the structured logger at the
// verbosity each native side requests during its handshake.
package main
