// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package vst3 is the Go rendition of the VST3 plugin API surface that
// the bridge proxies: result codes, class identifiers, UTF-16 strings,
// bus/parameter/routing descriptors, per-cycle process data, and the
// capability interfaces a plugin object may implement.
//
// Both sides of the bridge program against these types. On the native
// side the host application receives proxy objects that implement the
// same interfaces as the real plugin objects living in the
// compatibility-layer process, so neither side can tell that the other
// is remote.
//
// # Capabilities
//
// A plugin object may answer several interface queries at once (a
// "single component" plugin implements [Component], [AudioProcessor] and
// [EditController] on one object). [InterfacesOf] reports the set an
// object supports: objects implementing [Unknown] report it themselves,
// everything else is probed with type assertions. Proxies implement
// every Go method but report only the remote object's set, so callers
// must go through [Query] rather than a bare type assertion.
//
// # Text
//
// The API exchanges text as fixed-size UTF-16 buffers ([String128]).
// The wire format carries UTF-8; String128 implements
// encoding.TextMarshaler so the codec transcodes at the boundary.
package vst3
