// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the bridge's CBOR encoding configuration and
// the [Blob] container for opaque plugin state.
//
// Every frame payload exchanged between the native host process and
// the plugin host process is a CBOR item encoded with the modes defined
// here. The encoder uses Core Deterministic Encoding (RFC 8949 §4.2),
// so the same request always produces identical bytes, which keeps
// frame dumps diffable.
//
//	data, err := codec.Marshal(request)
//	err = codec.Unmarshal(data, &request)
//
// Wire types carry `cbor` struct tags with snake_case keys. Types that
// implement encoding.TextMarshaler travel as CBOR text strings, which is
// how UTF-16 parameter strings cross the boundary as UTF-8.
//
// # Blobs
//
// Plugin state (IComponent::getState and friends) is an arbitrary byte
// stream with no size limit. [PackBlob] wraps it with its length and a
// BLAKE3 digest and optionally compresses it with LZ4 or zstd according
// to a [BlobPolicy]; [Blob.Unpack] reverses the transformation and
// verifies the digest.
package codec
