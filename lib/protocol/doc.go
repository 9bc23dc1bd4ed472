// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines every message exchanged between the native
// host process and the plugin host process.
//
// Each interface method that crosses the boundary has one request type
// (for example [SetActive]) and names exactly one response type through
// its [Kind] ([Kind.ResponseKind]). Requests that target a plugin
// object embed [Target], which carries the instance id issued by the
// plugin side's registry. Callbacks from the plugin to the host embed
// [Owner] instead: the id of the instance whose handler or host context
// is being called, or zero for the factory.
//
// The transport writes the Kind into the frame header and the message
// itself as the CBOR payload. On receipt, [New] returns a zero value of
// the right type to decode into.
//
// Messages render themselves for diagnostics through LogAttrs. State
// blobs are rendered by size and digest; samples are never logged.
package protocol
