// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry maps instance identifiers to live objects.
//
// Each side of the bridge keeps one [Registry] per object kind. The
// side that creates an object calls [Registry.Register] and sends the
// returned [ID] to its peer; the peer either mirrors the identifier
// with [Registry.Insert] or simply carries it inside a proxy. Every
// message that names an instance is resolved through the registry, so
// an identifier that is not live is a protocol violation rather than a
// dangling pointer.
//
// Identifiers start at 1 and are never reused while the registry lives.
// Zero is reserved: callback messages use it to address the plugin
// factory itself.
package registry
