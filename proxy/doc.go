// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package proxy implements both ends of a bridged VST3 plugin.
//
// The native side runs inside the host application. [Client] owns the
// connection to the plugin host process and hands the host a
// [FactoryProxy], which creates [PluginProxy] objects. A PluginProxy
// implements every vst3 interface in Go, but reports through
// vst3.Unknown only the capability set the real object reported when it
// was constructed, so vst3.Query behaves as queryInterface would on the
// real plugin. Every method serializes its arguments into a request,
// blocks for the response, copies results into the caller's storage and
// returns the plugin's result code. A broken connection turns into
// kResultInternalError (or a zero value for methods without a result
// code) rather than a panic in the host.
//
// The plugin host side is [Server]. It owns the real factory and every
// object created through it, keyed by the instance id it issued. It
// answers requests from the native side and, through
// [ComponentHandlerProxy] and [HostApplicationProxy], lets the plugin
// call back into the host's component handler and host context. The
// native side routes those callbacks with a [CallbackRegistry].
//
// Error classes:
//
//   - A request naming an instance id the server does not know means
//     the two sides disagree about object lifetimes. The server returns
//     an error from its handler, which closes the channel.
//   - A request for an interface the object does not implement, a
//     callback for an owner without a registered handler, or a class
//     the factory cannot create is answered with kNoInterface and
//     logged. The channel stays usable.
//   - The plugin's own result codes pass through unchanged.
//
// Audio processing has its own invariants: SetupProcessing must succeed
// before Process, a successful SetBusArrangements invalidates the setup,
// and every block must match the bus layout that was current at setup.
// The server keeps one set of audio buffers per instance, allocated at
// setup and reused for every block.
package proxy
